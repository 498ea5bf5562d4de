package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"wasabix/core"
	"wasabix/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the node's protocol operations over JSON-RPC 2.0.
type Server struct {
	node      *core.Node
	authToken string
}

// NewServer constructs a server bound to the node. The bearer token guarding
// mutating methods is read from WASABIX_RPC_TOKEN.
func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv("WASABIX_RPC_TOKEN")),
	}
}

// SetAuthToken overrides the bearer token. Tests use it to avoid touching the
// environment.
func (s *Server) SetAuthToken(token string) { s.authToken = token }

// Handler returns the HTTP handler serving both the JSON-RPC endpoint and the
// websocket event stream.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	return mux
}

// Start serves the RPC surface on the supplied address, blocking until the
// listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(s.Handler(), "wasabix.rpc"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

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

// writeEngineError surfaces an engine failure verbatim in the error data so
// clients can match on the sentinel text.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusOK, id, codeServerError, "operation failed", err.Error())
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

// handle is the main request handler routing JSON-RPC methods.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, protected, ok := s.route(req.Method)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
		return
	}
	if protected {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			observability.ModuleMetrics().Observe(moduleLabel(req.Method), req.Method, http.StatusUnauthorized, 0)
			return
		}
	}

	start := time.Now()
	handler(w, r, req)
	observability.ModuleMetrics().Observe(moduleLabel(req.Method), req.Method, http.StatusOK, time.Since(start))
}

// route resolves a method name to its handler. The second return reports
// whether the method mutates state and therefore requires the bearer token.
func (s *Server) route(method string) (handlerFunc, bool, bool) {
	switch method {
	// Vault operations.
	case "vault_deposit":
		return s.handleVaultDeposit, true, true
	case "vault_withdraw":
		return s.handleVaultWithdraw, true, true
	case "vault_mint":
		return s.handleVaultMint, true, true
	case "vault_repay":
		return s.handleVaultRepay, true, true
	case "vault_liquidate":
		return s.handleVaultLiquidate, true, true
	case "vault_flush":
		return s.handleVaultFlush, true, true
	case "vault_harvest":
		return s.handleVaultHarvest, true, true
	case "vault_migrate":
		return s.handleVaultMigrate, true, true
	case "vault_recall":
		return s.handleVaultRecall, true, true
	case "vault_position":
		return s.handleVaultPosition, false, true
	case "vault_totalValue":
		return s.handleVaultTotalValue, false, true
	case "vault_adapters":
		return s.handleVaultAdapters, false, true

	// Vault governance.
	case "vault_setGovernance":
		return s.handleVaultSetGovernance, true, true
	case "vault_acceptGovernance":
		return s.handleVaultAcceptGovernance, true, true
	case "vault_setRewards":
		return s.handleVaultSetRewards, true, true
	case "vault_setFeeCollector":
		return s.handleVaultSetFeeCollector, true, true
	case "vault_setTransmuter":
		return s.handleVaultSetTransmuter, true, true
	case "vault_setHarvestFee":
		return s.handleVaultSetHarvestFee, true, true
	case "vault_setCollateralizationLimit":
		return s.handleVaultSetCollateralizationLimit, true, true
	case "vault_setFlushActivator":
		return s.handleVaultSetFlushActivator, true, true
	case "vault_setEmergencyExit":
		return s.handleVaultSetEmergencyExit, true, true

	// Transmuter operations.
	case "transmuter_stake":
		return s.handleTransmuterStake, true, true
	case "transmuter_unstake":
		return s.handleTransmuterUnstake, true, true
	case "transmuter_transmute":
		return s.handleTransmuterTransmute, true, true
	case "transmuter_forceTransmute":
		return s.handleTransmuterForceTransmute, true, true
	case "transmuter_claim":
		return s.handleTransmuterClaim, true, true
	case "transmuter_distribute":
		return s.handleTransmuterDistribute, true, true
	case "transmuter_userInfo":
		return s.handleTransmuterUserInfo, false, true
	case "transmuter_users":
		return s.handleTransmuterUsers, false, true
	case "transmuter_ledger":
		return s.handleTransmuterLedger, false, true

	// Transmuter governance.
	case "transmuter_setGovernance":
		return s.handleTransmuterSetGovernance, true, true
	case "transmuter_acceptGovernance":
		return s.handleTransmuterAcceptGovernance, true, true
	case "transmuter_setSentinel":
		return s.handleTransmuterSetSentinel, true, true
	case "transmuter_setWhitelist":
		return s.handleTransmuterSetWhitelist, true, true
	case "transmuter_setPause":
		return s.handleTransmuterSetPause, true, true
	case "transmuter_setTransmutationPeriod":
		return s.handleTransmuterSetTransmutationPeriod, true, true
	case "transmuter_setPlantableThreshold":
		return s.handleTransmuterSetPlantableThreshold, true, true
	case "transmuter_setPlantableMargin":
		return s.handleTransmuterSetPlantableMargin, true, true
	case "transmuter_migrateAdapter":
		return s.handleTransmuterMigrateAdapter, true, true
	case "transmuter_forceRecall":
		return s.handleTransmuterForceRecall, true, true
	case "transmuter_migrateFunds":
		return s.handleTransmuterMigrateFunds, true, true

	// Voting escrow operations.
	case "vesc_createLock":
		return s.handleEscrowCreateLock, true, true
	case "vesc_addAmount":
		return s.handleEscrowAddAmount, true, true
	case "vesc_extendLock":
		return s.handleEscrowExtendLock, true, true
	case "vesc_withdraw":
		return s.handleEscrowWithdraw, true, true
	case "vesc_collectReward":
		return s.handleEscrowCollectReward, true, true
	case "vesc_vestEarning":
		return s.handleEscrowVestEarning, true, true
	case "vesc_balance":
		return s.handleEscrowBalance, false, true
	case "vesc_balanceAt":
		return s.handleEscrowBalanceAt, false, true
	case "vesc_totalPower":
		return s.handleEscrowTotalPower, false, true
	case "vesc_locked":
		return s.handleEscrowLocked, false, true
	case "vesc_pending":
		return s.handleEscrowPending, false, true

	// Voting escrow governance.
	case "vesc_setGovernance":
		return s.handleEscrowSetGovernance, true, true
	case "vesc_acceptGovernance":
		return s.handleEscrowAcceptGovernance, true, true
	case "vesc_addRewardToken":
		return s.handleEscrowAddRewardToken, true, true
	case "vesc_setWasabiRewardRate":
		return s.handleEscrowSetWasabiRewardRate, true, true
	case "vesc_setWasabiVesting":
		return s.handleEscrowSetWasabiVesting, true, true
	case "vesc_setCollector":
		return s.handleEscrowSetCollector, true, true
	case "vesc_approve":
		return s.handleEscrowApprove, true, true

	// Account queries.
	case "wasabix_getBalance":
		return s.handleGetBalance, false, true
	case "wasabix_getHeight":
		return s.handleGetHeight, false, true
	}
	return nil, false, false
}

func moduleLabel(method string) string {
	if idx := strings.IndexByte(method, '_'); idx > 0 {
		return method[:idx]
	}
	return method
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

// decodeParams unmarshals the single parameter object every method expects.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

// decodeOptionalParams tolerates a missing parameter list for methods whose
// arguments are all optional.
func decodeOptionalParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return decodeParams(req, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	account, err := s.node.Account(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, BalanceResult{
		Address:        addr.String(),
		BalanceBase:    formatBig(account.BalanceBase),
		BalanceWaToken: formatBig(account.BalanceWaToken),
		BalanceWasabi:  formatBig(account.BalanceWasabi),
		Nonce:          account.Nonce,
	})
}

func (s *Server) handleGetHeight(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]uint64{"height": s.node.Height()})
}
