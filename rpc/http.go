package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"stakevault/native/bank"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// authTokenEnv names the environment variable carrying the bearer token
	// required for mutating calls.
	authTokenEnv = "STAKEVAULT_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the staking engine over JSON-RPC 2.0.
type Server struct {
	engine *staking.Engine
	pauses *nativecommon.PauseSet
	log    *slog.Logger

	authToken string

	mu         sync.Mutex
	httpSrv    *http.Server
	visitors   map[string]*rate.Limiter
	ratePerSec rate.Limit
	burst      int
}

// Options tune the server's rate limiting.
type Options struct {
	RatePerMinute float64
	Burst         int
}

// NewServer constructs the RPC server. The auth token is read from the
// environment so it never lands in config files.
func NewServer(engine *staking.Engine, pauses *nativecommon.PauseSet, log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.Default()
	}
	perMinute := opts.RatePerMinute
	if perMinute <= 0 {
		perMinute = 600
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 20
	}
	return &Server{
		engine:     engine,
		pauses:     pauses,
		log:        log,
		authToken:  strings.TrimSpace(os.Getenv(authTokenEnv)),
		visitors:   make(map[string]*rate.Limiter),
		ratePerSec: rate.Limit(perMinute / 60),
		burst:      burst,
	}
}

// Router builds the HTTP surface: the RPC endpoint plus health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr and blocks until the listener fails or
// Shutdown is called, in which case it returns http.ErrServerClosed.
func (s *Server) Start(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	s.log.Info("starting JSON-RPC server", "addr", addr)
	return srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener. Safe to call
// before Start; it is then a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// RPCRequest is the JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is the JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a structured JSON-RPC error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	w.Header().Set("Content-Type", "application/json")

	if !s.allow(clientID(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		observability.StakingMetrics().Observe("unknown", http.StatusTooManyRequests, started)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", err.Error())
		observability.StakingMetrics().Observe("unknown", http.StatusBadRequest, started)
		return
	}
	if int64(len(body)) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		observability.StakingMetrics().Observe("unknown", http.StatusRequestEntityTooLarge, started)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		observability.StakingMetrics().Observe("unknown", http.StatusBadRequest, started)
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request", nil)
		method := strings.TrimSpace(req.Method)
		if method == "" {
			method = "unknown"
		}
		observability.StakingMetrics().Observe(method, http.StatusBadRequest, started)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, &req)
	observability.StakingMetrics().Observe(req.Method, recorder.status, started)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requireAuth gates mutating methods behind the static bearer token.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Server) allow(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[client]
	if !ok {
		limiter = rate.NewLimiter(s.ratePerSec, s.burst)
		s.visitors[client] = limiter
	}
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// errorStatus maps engine failures onto HTTP status and JSON-RPC error codes.
func errorStatus(err error) (int, int) {
	switch {
	case errors.Is(err, staking.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codeServerError
	case errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrBelowMinimumDeposit),
		errors.Is(err, staking.ErrLockTooShort),
		errors.Is(err, staking.ErrLockTooLong),
		errors.Is(err, staking.ErrInvalidExtension),
		errors.Is(err, staking.ErrInvalidPositionID),
		errors.Is(err, staking.ErrInvalidLockParameters),
		errors.Is(err, staking.ErrInvalidMultiplier):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, staking.ErrTokensStillLocked),
		errors.Is(err, staking.ErrInsufficientStakedAmount),
		errors.Is(err, staking.ErrNoRewardsToClaim),
		errors.Is(err, staking.ErrInsufficientRewardBalance),
		errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusConflict, codeServerError
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
