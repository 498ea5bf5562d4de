package rpc

import (
	"net/http"

	"wasabix/crypto"
)

type transmuterAmountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type transmuterCallerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) transmuterUserResult(addr crypto.Address) (*TransmuterUserResult, error) {
	info, err := s.node.TransmuterUserInfo(addr)
	if err != nil {
		return nil, err
	}
	return &TransmuterUserResult{
		Address:           addr.String(),
		DepositedWaTokens: formatBig(info.DepositedWaTokens),
		PendingDividends:  formatBig(info.PendingDividends),
		TokensInBucket:    formatBig(info.TokensInBucket),
		RealisedTokens:    formatBig(info.RealisedTokens),
	}, nil
}

func (s *Server) handleTransmuterStake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transmuterAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.TransmuterStake(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result, err := s.transmuterUserResult(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTransmuterUnstake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transmuterAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.TransmuterUnstake(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result, err := s.transmuterUserResult(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTransmuterTransmute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transmuterCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.TransmuterTransmute(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result, err := s.transmuterUserResult(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTransmuterForceTransmute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Target string `json:"target"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	target, err := decodeBech32(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid target address", err.Error())
		return
	}
	if err := s.node.TransmuterForceTransmute(caller, target); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result, err := s.transmuterUserResult(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTransmuterClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transmuterCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	claimed, err := s.node.TransmuterClaim(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Amount: formatBig(claimed)})
}

func (s *Server) handleTransmuterDistribute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Origin string `json:"origin"`
		Amount string `json:"amount"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	origin, err := decodeBech32(params.Origin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid origin address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.TransmuterDistribute(origin, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterUserInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	result, err := s.transmuterUserResult(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTransmuterUsers(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	}
	if err := decodeOptionalParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	users, err := s.node.TransmuterUsers(params.Offset, params.Limit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	total, err := s.node.TransmuterUserCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	encoded := make([]string, 0, len(users))
	for _, user := range users {
		encoded = append(encoded, user.String())
	}
	writeResult(w, req.ID, map[string]interface{}{
		"users": encoded,
		"total": total,
	})
}

func (s *Server) handleTransmuterLedger(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	ledger, err := s.node.TransmuterLedger()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, TransmuterLedgerResult{
		Buffer:              formatBig(ledger.Buffer),
		LastDepositBlock:    ledger.LastDepositBlock,
		TotalSupplyWaTokens: formatBig(ledger.TotalSupplyWaTokens),
	})
}

// --- Governance ---

func (s *Server) handleTransmuterSetGovernance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.transmuterAddressSetter(w, req, s.node.TransmuterSetGovernance)
}

func (s *Server) handleTransmuterMigrateFunds(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.transmuterAddressSetter(w, req, s.node.TransmuterMigrateFunds)
}

func (s *Server) transmuterAddressSetter(w http.ResponseWriter, req *RPCRequest, apply func(crypto.Address, crypto.Address) error) {
	var params struct {
		Caller  string `json:"caller"`
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	target, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	if err := apply(caller, target); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterAcceptGovernance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transmuterCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.TransmuterAcceptGovernance(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterSetSentinel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.transmuterAllowSetter(w, req, s.node.TransmuterSetSentinel)
}

func (s *Server) handleTransmuterSetWhitelist(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.transmuterAllowSetter(w, req, s.node.TransmuterSetWhitelist)
}

func (s *Server) transmuterAllowSetter(w http.ResponseWriter, req *RPCRequest, apply func(crypto.Address, crypto.Address, bool) error) {
	var params struct {
		Caller  string `json:"caller"`
		Address string `json:"address"`
		Allowed bool   `json:"allowed"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	target, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	if err := apply(caller, target, params.Allowed); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterSetPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Paused bool   `json:"paused"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.TransmuterSetPause(caller, params.Paused); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterSetTransmutationPeriod(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Blocks uint64 `json:"blocks"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.TransmuterSetTransmutationPeriod(caller, params.Blocks); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterSetPlantableThreshold(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller    string `json:"caller"`
		Threshold string `json:"threshold"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	threshold, err := parseOptionalAmount(params.Threshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.TransmuterSetPlantableThreshold(caller, threshold); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterSetPlantableMargin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Bps    uint64 `json:"bps"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.TransmuterSetPlantableMargin(caller, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterMigrateAdapter(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller    string `json:"caller"`
		AdapterID string `json:"adapterId"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.TransmuterMigrateAdapter(caller, params.AdapterID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTransmuterForceRecall(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Index  int    `json:"index"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.TransmuterForceRecall(caller, params.Index); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}
