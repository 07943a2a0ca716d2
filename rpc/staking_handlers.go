package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"stakevault/crypto"
	"stakevault/native/staking"
)

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "staking_openPosition":
		s.handleOpenPosition(w, r, req)
	case "staking_extendLock":
		s.handleExtendLock(w, r, req)
	case "staking_withdraw":
		s.handleWithdraw(w, r, req)
	case "staking_claimRewards":
		s.handleClaimRewards(w, r, req)
	case "staking_claimAllRewards":
		s.handleClaimAllRewards(w, r, req)
	case "staking_setEmissionRate":
		s.handleSetEmissionRate(w, r, req)
	case "staking_setLockParameters":
		s.handleSetLockParameters(w, r, req)
	case "staking_setPersonalMultiplier":
		s.handleSetPersonalMultiplier(w, r, req)
	case "staking_setMinDeposit":
		s.handleSetMinDeposit(w, r, req)
	case "staking_depositRewards":
		s.handleDepositRewards(w, r, req)
	case "staking_setPaused":
		s.handleSetPaused(w, r, req)
	case "staking_getPosition":
		s.handleGetPosition(w, req)
	case "staking_listPositions":
		s.handleListPositions(w, req)
	case "staking_pendingRewards":
		s.handlePendingRewards(w, req)
	case "staking_summary":
		s.handleSummary(w, req)
	case "staking_stats":
		s.handleStats(w, req)
	case "staking_stakers":
		s.handleStakers(w, req, false)
	case "staking_activeStakers":
		s.handleStakers(w, req, true)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected parameter object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func parseAddressParam(raw, field string) (crypto.Address, *RPCError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, &RPCError{Code: codeInvalidParams, Message: "invalid " + field, Data: err.Error()}
	}
	return addr, nil
}

func parseAmountParam(raw, field string) (*big.Int, *RPCError) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: field + " must be a base-10 integer"}
	}
	return value, nil
}

func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := errorStatus(err)
	writeError(w, status, id, code, err.Error(), nil)
}

// --- mutating handlers ---

type openPositionParams struct {
	Owner      string `json:"owner"`
	Amount     string `json:"amount"`
	UnlockTime uint64 `json:"unlockTime"`
}

type openPositionResult struct {
	PositionID uint64 `json:"positionId"`
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input openPositionParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmountParam(input.Amount, "amount")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	id, err := s.engine.OpenPosition(owner, amount, input.UnlockTime)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, openPositionResult{PositionID: id})
}

type extendLockParams struct {
	Owner         string `json:"owner"`
	PositionID    uint64 `json:"positionId"`
	NewUnlockTime uint64 `json:"newUnlockTime"`
}

func (s *Server) handleExtendLock(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input extendLockParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.ExtendLock(owner, input.PositionID, input.NewUnlockTime); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type withdrawParams struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"positionId"`
	Amount     string `json:"amount"`
}

type withdrawResult struct {
	RewardsPaid string `json:"rewardsPaid"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input withdrawParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmountParam(input.Amount, "amount")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	paid, err := s.engine.Withdraw(owner, input.PositionID, amount)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, withdrawResult{RewardsPaid: paid.String()})
}

type claimParams struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"positionId"`
}

type claimResult struct {
	Paid string `json:"paid"`
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input claimParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	paid, err := s.engine.ClaimRewards(owner, input.PositionID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimResult{Paid: paid.String()})
}

type claimAllParams struct {
	Owner string `json:"owner"`
}

func (s *Server) handleClaimAllRewards(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input claimAllParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	paid, err := s.engine.ClaimAllRewards(owner)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimResult{Paid: paid.String()})
}

// --- admin handlers ---

type setEmissionParams struct {
	Caller string `json:"caller"`
	Rate   string `json:"rate"`
}

func (s *Server) handleSetEmissionRate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input setEmissionParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddressParam(input.Caller, "caller")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	rate, rpcErr := parseAmountParam(input.Rate, "rate")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.SetEmissionRate(caller, rate); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type setLockParams struct {
	Caller        string `json:"caller"`
	MinLockDays   uint64 `json:"minLockDays"`
	MaxLockDays   uint64 `json:"maxLockDays"`
	MinMultiplier string `json:"minMultiplier"`
	MaxMultiplier string `json:"maxMultiplier"`
}

func (s *Server) handleSetLockParameters(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input setLockParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddressParam(input.Caller, "caller")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	minMultiplier, rpcErr := parseAmountParam(input.MinMultiplier, "minMultiplier")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	maxMultiplier, rpcErr := parseAmountParam(input.MaxMultiplier, "maxMultiplier")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	cfg := staking.LockConfig{
		MinLockDays:   input.MinLockDays,
		MaxLockDays:   input.MaxLockDays,
		MinMultiplier: minMultiplier,
		MaxMultiplier: maxMultiplier,
	}
	if err := s.engine.SetLockParameters(caller, cfg); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type setMultiplierParams struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
	Value   string `json:"value"`
}

func (s *Server) handleSetPersonalMultiplier(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input setMultiplierParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddressParam(input.Caller, "caller")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	account, rpcErr := parseAddressParam(input.Account, "account")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	value, rpcErr := parseAmountParam(input.Value, "value")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.SetPersonalMultiplier(caller, account, value); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type setMinDepositParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleSetMinDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input setMinDepositParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddressParam(input.Caller, "caller")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmountParam(input.Amount, "amount")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.SetMinDeposit(caller, amount); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type depositRewardsParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleDepositRewards(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input depositRewardsParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddressParam(input.Caller, "caller")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmountParam(input.Amount, "amount")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.DepositRewardTokens(caller, amount); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type setPausedParams struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var input setPausedParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if s.pauses == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "pause toggles unavailable", nil)
		return
	}
	s.pauses.SetPaused(staking.ModuleName, input.Paused)
	writeResult(w, req.ID, true)
}

// --- view handlers ---

func (s *Server) handleGetPosition(w http.ResponseWriter, req *RPCRequest) {
	var input claimParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	info, err := s.engine.GetPosition(owner, input.PositionID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, info)
}

type listPositionsParams struct {
	Owner  string `json:"owner"`
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

func (s *Server) handleListPositions(w http.ResponseWriter, req *RPCRequest) {
	var input listPositionsParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	positions, err := s.engine.ListPositions(owner, input.Offset, input.Limit)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positions)
}

func (s *Server) handlePendingRewards(w http.ResponseWriter, req *RPCRequest) {
	var input claimParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	pending, err := s.engine.PendingRewards(owner, input.PositionID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"pending": pending.String()})
}

func (s *Server) handleSummary(w http.ResponseWriter, req *RPCRequest) {
	var input claimAllParams
	if rpcErr := decodeParams(req, &input); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseAddressParam(input.Owner, "owner")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	summary, err := s.engine.Summary(owner)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, summary)
}

func (s *Server) handleStats(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	stats, err := s.engine.Stats()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stats)
}

type stakersParams struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type stakersResult struct {
	Stakers []string `json:"stakers"`
	Total   uint64   `json:"total"`
}

func (s *Server) handleStakers(w http.ResponseWriter, req *RPCRequest, activeOnly bool) {
	input := stakersParams{}
	if len(req.Params) == 1 {
		if rpcErr := decodeParams(req, &input); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	} else if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "too many parameters", nil)
		return
	}
	var (
		stakers []string
		total   uint64
		err     error
	)
	if activeOnly {
		stakers, total, err = s.engine.ActiveStakers(input.Offset, input.Limit)
	} else {
		stakers, total, err = s.engine.Stakers(input.Offset, input.Limit)
	}
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakersResult{Stakers: stakers, Total: total})
}
