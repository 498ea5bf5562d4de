package rpc

import (
	"net/http"

	"wasabix/crypto"
)

type vaultAmountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type vaultRepayParams struct {
	Caller        string `json:"caller"`
	WaTokenAmount string `json:"waTokenAmount,omitempty"`
	BaseAmount    string `json:"baseAmount,omitempty"`
}

type vaultAdapterParams struct {
	Caller    string `json:"caller"`
	AdapterID string `json:"adapterId"`
}

type vaultRecallParams struct {
	Caller  string `json:"caller"`
	VaultID uint64 `json:"vaultId"`
	Amount  string `json:"amount"`
}

func (s *Server) vaultPositionResult(addr crypto.Address) (*PositionResult, error) {
	position, err := s.node.VaultPosition(addr)
	if err != nil {
		return nil, err
	}
	return &PositionResult{
		Address:        addr.String(),
		TotalDeposited: formatBig(position.TotalDeposited),
		TotalDebt:      formatBig(position.TotalDebt),
	}, nil
}

func (s *Server) handleVaultDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAmountParams
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
	if err := s.node.VaultDeposit(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result, err := s.vaultPositionResult(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAmountParams
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
	if err := s.node.VaultWithdraw(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result, err := s.vaultPositionResult(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAmountParams
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
	if err := s.node.VaultMint(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result, err := s.vaultPositionResult(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultRepayParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	waTokenAmount, err := parseOptionalAmount(params.WaTokenAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	baseAmount, err := parseOptionalAmount(params.BaseAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.VaultRepay(caller, waTokenAmount, baseAmount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result, err := s.vaultPositionResult(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAmountParams
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
	settled, err := s.node.VaultLiquidate(caller, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Amount: formatBig(settled)})
}

func (s *Server) handleVaultFlush(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
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
	if err := s.node.VaultFlush(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleVaultHarvest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		VaultID uint64 `json:"vaultId"`
	}
	if err := decodeOptionalParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	harvested, err := s.node.VaultHarvest(params.VaultID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Amount: formatBig(harvested)})
}

func (s *Server) handleVaultMigrate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAdapterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	vaultID, err := s.node.VaultMigrate(caller, params.AdapterID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"vaultId": vaultID})
}

func (s *Server) handleVaultRecall(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultRecallParams
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
	recalled, err := s.node.VaultRecallFunds(caller, params.VaultID, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Amount: formatBig(recalled)})
}

func (s *Server) handleVaultPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	result, err := s.vaultPositionResult(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultTotalValue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	total, err := s.node.VaultTotalValue()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Amount: formatBig(total)})
}

func (s *Server) handleVaultAdapters(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.node.VaultCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	entries := make([]AdapterEntryResult, 0, count)
	for id := uint64(0); id < count; id++ {
		entry, err := s.node.VaultAt(id)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		entries = append(entries, AdapterEntryResult{
			VaultID:        id,
			AdapterID:      entry.AdapterID,
			TotalDeposited: formatBig(entry.TotalDeposited),
		})
	}
	writeResult(w, req.ID, entries)
}

// --- Governance setters ---

type vaultAddressParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

func (s *Server) handleVaultSetGovernance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.vaultAddressSetter(w, req, s.node.VaultSetGovernance)
}

func (s *Server) handleVaultSetRewards(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.vaultAddressSetter(w, req, s.node.VaultSetRewards)
}

func (s *Server) handleVaultSetFeeCollector(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.vaultAddressSetter(w, req, s.node.VaultSetFeeCollector)
}

func (s *Server) handleVaultSetTransmuter(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.vaultAddressSetter(w, req, s.node.VaultSetTransmuter)
}

func (s *Server) vaultAddressSetter(w http.ResponseWriter, req *RPCRequest, apply func(crypto.Address, crypto.Address) error) {
	var params vaultAddressParams
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

func (s *Server) handleVaultAcceptGovernance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
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
	if err := s.node.VaultAcceptGovernance(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleVaultSetHarvestFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	if err := s.node.VaultSetHarvestFee(caller, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleVaultSetCollateralizationLimit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Limit  string `json:"limit"`
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
	limit, err := parseAmount(params.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.VaultSetCollateralizationLimit(caller, limit); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleVaultSetFlushActivator(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	threshold, err := parseAmount(params.Threshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.VaultSetFlushActivator(caller, threshold); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleVaultSetEmergencyExit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Active bool   `json:"active"`
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
	if err := s.node.VaultSetEmergencyExit(caller, params.Active); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}
