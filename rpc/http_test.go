package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wasabix/core"
	"wasabix/crypto"
	"wasabix/native/yield"
	"wasabix/storage"
)

const testToken = "rpc-test-token"

func testAddr(tag byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = tag
	return crypto.MustNewAddress(crypto.WaxPrefix, raw)
}

func newTestServer(t *testing.T) (*httptest.Server, crypto.Address) {
	t.Helper()
	alice := testAddr(0x0A)
	registry := yield.NewRegistry()
	require.NoError(t, registry.Register("idle", yield.NewIdleAdapter("DAI")))
	node, err := core.NewNode(storage.NewMemDB(), registry, &core.Genesis{
		Governance:             testAddr(0x01),
		Rewards:                testAddr(0x02),
		FeeCollector:           testAddr(0x03),
		BaseToken:              "DAI",
		WasabiToken:            "WASABI",
		AdapterID:              "idle",
		CollateralizationLimit: new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18)),
		MintFeeBps:             30,
		FlushActivator:         big.NewInt(1_000_000_000),
		WaTokenCeiling:         big.NewInt(1_000_000),
		TransmutationPeriod:    4,
		PlantableThreshold:     big.NewInt(1_000_000_000),
		WasabiRatePerBlock:     big.NewInt(0),
		Alloc: []core.GenesisAccount{
			{Address: alice, Base: big.NewInt(10_000), Wasabi: big.NewInt(1_024)},
		},
	})
	require.NoError(t, err)
	node.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })

	server := NewServer(node)
	server.SetAuthToken(testToken)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, alice
}

func call(t *testing.T, ts *httptest.Server, token, method string, params interface{}) *RPCResponse {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := &RPCResponse{}
	require.NoError(t, json.Unmarshal(payload, decoded))
	return decoded
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	ts, alice := newTestServer(t)

	resp := call(t, ts, "", "vault_deposit", map[string]string{
		"caller": alice.String(),
		"amount": "100",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = call(t, ts, "wrong-token", "vault_deposit", map[string]string{
		"caller": alice.String(),
		"amount": "100",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestDepositAndMintThroughRPC(t *testing.T) {
	ts, alice := newTestServer(t)

	resp := call(t, ts, testToken, "vault_deposit", map[string]string{
		"caller": alice.String(),
		"amount": "5000",
	})
	require.Nil(t, resp.Error)

	resp = call(t, ts, testToken, "vault_mint", map[string]string{
		"caller": alice.String(),
		"amount": "1000",
	})
	require.Nil(t, resp.Error)

	var position PositionResult
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &position))
	require.Equal(t, "5000", position.TotalDeposited)
	require.Equal(t, "1000", position.TotalDebt)

	// The minted balance net of the 0.3% fee is visible without auth.
	resp = call(t, ts, "", "wasabix_getBalance", map[string]string{
		"address": alice.String(),
	})
	require.Nil(t, resp.Error)
	var balance BalanceResult
	raw, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &balance))
	require.Equal(t, "997", balance.BalanceWaToken)
	require.Equal(t, "5000", balance.BalanceBase)
}

func TestEngineErrorsSurfaceInErrorData(t *testing.T) {
	ts, alice := newTestServer(t)

	resp := call(t, ts, testToken, "vault_deposit", map[string]string{
		"caller": alice.String(),
		"amount": "1000",
	})
	require.Nil(t, resp.Error)

	// 501 breaches the 200% collateralization floor on a 1000 deposit.
	resp = call(t, ts, testToken, "vault_mint", map[string]string{
		"caller": alice.String(),
		"amount": "501",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeServerError, resp.Error.Code)
	require.Contains(t, resp.Error.Data, "vault engine")
}

func TestMethodNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := call(t, ts, "", "vault_unknownMethod", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestInvalidParamsRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := call(t, ts, testToken, "vault_deposit", map[string]string{
		"caller": "not-a-bech32-address",
		"amount": "100",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	resp = call(t, ts, testToken, "vault_deposit", map[string]string{
		"caller": testAddr(0x0A).String(),
		"amount": "-5",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestEscrowLockThroughRPC(t *testing.T) {
	ts, alice := newTestServer(t)

	resp := call(t, ts, testToken, "vesc_createLock", map[string]interface{}{
		"caller":        alice.String(),
		"amount":        "1024",
		"durationIndex": 5,
	})
	require.Nil(t, resp.Error)

	var lock EscrowLockResult
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &lock))
	require.Equal(t, "1024", lock.LockedAmount)
	require.Equal(t, "1024", lock.Power)

	resp = call(t, ts, "", "vesc_totalPower", nil)
	require.Nil(t, resp.Error)
	var total AmountResult
	raw, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &total))
	require.Equal(t, "1024", total.Amount)
}
