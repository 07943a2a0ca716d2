package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stakevault/crypto"
	"stakevault/native/bank"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	stakingstate "stakevault/state/staking"
	"stakevault/storage"
)

const testToken = "test-rpc-token"

type fixture struct {
	server *Server
	ledger *bank.Ledger
	clock  uint64
	owner  crypto.Address
	module crypto.Address
}

func rpcAddr(last byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = last
	return crypto.MustNewAddress(crypto.VaultPrefix, raw)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("STAKEVAULT_RPC_TOKEN", testToken)

	store := stakingstate.NewStore(storage.NewMemDB())
	ledger := bank.NewLedger(store)
	pauses := nativecommon.NewPauseSet()

	f := &fixture{
		ledger: ledger,
		clock:  1_000,
		owner:  rpcAddr(0xEE),
		module: rpcAddr(0xAA),
	}

	engine := staking.NewEngine(f.module, f.owner)
	engine.SetState(store)
	engine.SetLedger(ledger)
	engine.SetPauses(pauses)
	engine.SetNowFunc(func() uint64 { return f.clock })
	if err := engine.InitGenesis(staking.Genesis{
		EmissionPerSecond: big.NewInt(1),
		MinDeposit:        big.NewInt(1),
		LockConfig:        staking.DefaultLockConfig(),
	}); err != nil {
		t.Fatalf("init genesis: %v", err)
	}

	f.server = NewServer(engine, pauses, nil, Options{RatePerMinute: 600_000, Burst: 1_000})
	return f
}

func (f *fixture) call(t *testing.T, method string, params interface{}, token string) (*http.Response, RPCResponse) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, httpReq)

	var resp RPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Result(), resp
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t)
	httpResp, resp := f.call(t, "staking_noSuchMethod", nil, "")
	if httpResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", httpResp.StatusCode)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp.Error)
	}
}

func TestMalformedEnvelope(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad JSON, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"1.0","method":"staking_stats","id":1}`)))
	rec = httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong version, got %d", rec.Code)
	}
}

func TestViewsNeedNoAuth(t *testing.T) {
	f := newFixture(t)
	httpResp, resp := f.call(t, "staking_stats", nil, "")
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", httpResp.StatusCode)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result == nil {
		t.Fatalf("expected stats result")
	}
}

func TestMutationsRequireBearerToken(t *testing.T) {
	f := newFixture(t)
	staker := rpcAddr(0x01)
	params := map[string]interface{}{
		"owner":      staker.String(),
		"amount":     "100",
		"unlockTime": f.clock + 30*86_400,
	}

	httpResp, resp := f.call(t, "staking_openPosition", params, "")
	if httpResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", httpResp.StatusCode)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", resp.Error)
	}

	httpResp, _ = f.call(t, "staking_openPosition", params, "wrong-token")
	if httpResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", httpResp.StatusCode)
	}
}

func TestOpenPositionEndToEnd(t *testing.T) {
	f := newFixture(t)
	staker := rpcAddr(0x01)
	if err := f.ledger.Mint(staker, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	params := map[string]interface{}{
		"owner":      staker.String(),
		"amount":     "100",
		"unlockTime": f.clock + 30*86_400,
	}
	httpResp, resp := f.call(t, "staking_openPosition", params, testToken)
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", httpResp.StatusCode, resp.Error)
	}
	var result openPositionResult
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.PositionID != 0 {
		t.Fatalf("expected position id 0, got %d", result.PositionID)
	}

	// The view side sees the new position without auth.
	httpResp, resp = f.call(t, "staking_getPosition", map[string]interface{}{
		"owner":      staker.String(),
		"positionId": 0,
	}, "")
	if httpResp.StatusCode != http.StatusOK || resp.Error != nil {
		t.Fatalf("get position failed: %d %+v", httpResp.StatusCode, resp.Error)
	}
}

func TestEngineErrorsMapToStatusCodes(t *testing.T) {
	f := newFixture(t)
	staker := rpcAddr(0x01)
	if err := f.ledger.Mint(staker, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Lock shorter than the configured minimum.
	httpResp, resp := f.call(t, "staking_openPosition", map[string]interface{}{
		"owner":      staker.String(),
		"amount":     "100",
		"unlockTime": f.clock + 60,
	}, testToken)
	if httpResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for short lock, got %d", httpResp.StatusCode)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params mapping, got %+v", resp.Error)
	}

	// Withdrawing from a position that does not exist.
	httpResp, _ = f.call(t, "staking_withdraw", map[string]interface{}{
		"owner":      staker.String(),
		"positionId": 9,
		"amount":     "1",
	}, testToken)
	if httpResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown position, got %d", httpResp.StatusCode)
	}

	// Malformed address short-circuits before the engine.
	httpResp, resp = f.call(t, "staking_summary", map[string]interface{}{"owner": "garbage"}, "")
	if httpResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad address, got %d", httpResp.StatusCode)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params error, got %+v", resp.Error)
	}
}

func TestPauseToggleBlocksMutations(t *testing.T) {
	f := newFixture(t)
	staker := rpcAddr(0x01)
	if err := f.ledger.Mint(staker, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	httpResp, _ := f.call(t, "staking_setPaused", map[string]interface{}{"paused": true}, testToken)
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 pausing, got %d", httpResp.StatusCode)
	}

	httpResp, resp := f.call(t, "staking_openPosition", map[string]interface{}{
		"owner":      staker.String(),
		"amount":     "100",
		"unlockTime": f.clock + 30*86_400,
	}, testToken)
	if httpResp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while paused, got %d (%+v)", httpResp.StatusCode, resp.Error)
	}

	if _, resp := f.call(t, "staking_setPaused", map[string]interface{}{"paused": false}, testToken); resp.Error != nil {
		t.Fatalf("unpause failed: %+v", resp.Error)
	}
	httpResp, resp = f.call(t, "staking_openPosition", map[string]interface{}{
		"owner":      staker.String(),
		"amount":     "100",
		"unlockTime": f.clock + 30*86_400,
	}, testToken)
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after unpause, got %d (%+v)", httpResp.StatusCode, resp.Error)
	}
}

func TestAdminMethodsFlowThroughEngine(t *testing.T) {
	f := newFixture(t)

	httpResp, resp := f.call(t, "staking_setEmissionRate", map[string]interface{}{
		"caller": f.owner.String(),
		"rate":   "42",
	}, testToken)
	if httpResp.StatusCode != http.StatusOK || resp.Error != nil {
		t.Fatalf("set emission failed: %d %+v", httpResp.StatusCode, resp.Error)
	}

	// Non-owner callers are rejected by the engine with 403.
	intruder := rpcAddr(0x66)
	httpResp, resp = f.call(t, "staking_setEmissionRate", map[string]interface{}{
		"caller": intruder.String(),
		"rate":   "42",
	}, testToken)
	if httpResp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d (%+v)", httpResp.StatusCode, resp.Error)
	}

	_, resp = f.call(t, "staking_stats", nil, "")
	if resp.Error != nil {
		t.Fatalf("stats failed: %+v", resp.Error)
	}
	stats, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected stats shape %T", resp.Result)
	}
	if fmt.Sprintf("%v", stats["emissionPerSecond"]) != "42" {
		t.Fatalf("expected emission 42, got %v", stats["emissionPerSecond"])
	}
}

func TestRejectedRequestsAreCounted(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad JSON, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `stakevault_rpc_errors_total{method="unknown",status="400"}`) {
		t.Fatalf("rejected request missing from error counters:\n%s", body)
	}
	if !strings.Contains(body, `stakevault_rpc_requests_total{method="unknown",outcome="error"}`) {
		t.Fatalf("rejected request missing from request counters:\n%s", body)
	}
}

func TestShutdownStopsServer(t *testing.T) {
	f := newFixture(t)

	errCh := make(chan error, 1)
	go func() { errCh <- f.server.Start("127.0.0.1:0") }()

	// Start registers the listener asynchronously; keep nudging Shutdown
	// until Start unblocks.
	deadline := time.Now().Add(5 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := f.server.Shutdown(ctx)
		cancel()
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				t.Fatalf("expected ErrServerClosed, got %v", err)
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not stop after shutdown")
		}
	}
}
