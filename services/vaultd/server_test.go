package vaultd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"stakevault/config"
	"stakevault/core/events"
	"stakevault/crypto"
	"stakevault/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// recordingSink stands in for the audit journal.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Emit(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

type testEnv struct {
	t      *testing.T
	server *httptest.Server
	node   *Node
	hub    *Hub
	sink   *recordingSink
	now    atomic.Int64
	admin  crypto.Address
	alice  crypto.Address
	bob    crypto.Address
}

type envOption func(*ServerConfig, *config.Config)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	nodeCfg := config.Default()
	nodeCfg.DBBackend = storage.BackendMemory
	nodeCfg.VestingPeriodSeconds = 100

	env := &testEnv{
		t:     t,
		sink:  &recordingSink{},
		admin: newAccount(t),
		alice: newAccount(t),
		bob:   newAccount(t),
	}
	env.now.Store(1_000)

	hub := NewHub()
	env.hub = hub
	serverCfg := ServerConfig{
		Hub:           hub,
		Auth:          NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "vaultd-test"}, nil),
		Limiter:       NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60_000, Burst: 1_000}),
		AssetID:       nodeCfg.AssetID,
		VestingPeriod: nodeCfg.VestingPeriodSeconds,
		FaucetMax:     1_000_000,
	}
	for _, opt := range opts {
		opt(&serverCfg, nodeCfg)
	}

	node, err := OpenNode(nodeCfg, events.MultiEmitter{hub, env.sink}, nil)
	require.NoError(t, err)
	node.Engine.SetNowFunc(func() int64 { return env.now.Load() })
	env.node = node

	serverCfg.Engine = node.Engine
	serverCfg.Funder = node.State
	srv, err := NewServer(serverCfg)
	require.NoError(t, err)
	env.server = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		env.server.Close()
		hub.Close()
		node.Close()
	})
	return env
}

func newAccount(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.Address()
}

func (e *testEnv) token(caller crypto.Address) string {
	token, err := IssueToken([]byte(testSecret), caller, "vaultd-test", "", time.Hour, time.Now())
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) post(caller crypto.Address, path string, body any) (int, map[string]any) {
	e.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(e.t, err)
	}
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewReader(payload))
	require.NoError(e.t, err)
	if !caller.IsZero() {
		req.Header.Set("Authorization", "Bearer "+e.token(caller))
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) get(path string) (int, map[string]any) {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(e.t, err)
	return e.do(req)
}

func (e *testEnv) do(req *http.Request) (int, map[string]any) {
	e.t.Helper()
	resp, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (e *testEnv) advance(seconds int64) { e.now.Add(seconds) }

// bootstrap initializes the vault and funds alice and bob.
func (e *testEnv) bootstrap() {
	e.t.Helper()
	status, body := e.post(e.admin, "/v1/vault/initialize", nil)
	require.Equal(e.t, http.StatusOK, status, body)
	for _, acct := range []crypto.Address{e.admin, e.alice, e.bob} {
		status, body = e.post(e.admin, "/v1/dev/fund", map[string]any{"account": acct.String(), "amount": 100_000})
		require.Equal(e.t, http.StatusOK, status, body)
	}
}

func errorCode(body map[string]any) string {
	detail, _ := body["error"].(map[string]any)
	code, _ := detail["code"].(string)
	return code
}

func TestServerStakeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap()

	status, body := env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 1_000})
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 1_000, body["activeStakeAmount"])

	status, body = env.post(env.alice, "/v1/stake/unstake", map[string]any{"amount": 400})
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 0, body["index"])

	env.advance(50)
	status, body = env.post(env.alice, "/v1/stake/claim", map[string]any{"index": 0})
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 200, body["claimed"])

	status, body = env.post(env.alice, "/v1/stake/cancel", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 200, body["cancelled"])

	status, body = env.get("/v1/stakes/" + env.alice.String())
	require.Equal(t, http.StatusOK, status, body)
	stake := body["stake"].(map[string]any)
	require.EqualValues(t, 800, stake["activeStakeAmount"])
	require.EqualValues(t, 200, stake["vestedAmount"])
	require.EqualValues(t, 0, body["pendingUnlock"])

	status, body = env.get("/v1/balances/" + env.alice.String())
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 100_000-800, body["balance"])

	status, body = env.get("/v1/vault")
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 800, body["balance"])
}

func TestServerClaimWithChunkedEmptyBodyClaimsAll(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap()

	require.Equal(t, http.StatusOK, first(env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 1_000})))
	require.Equal(t, http.StatusOK, first(env.post(env.alice, "/v1/stake/unstake", map[string]any{"amount": 300})))
	require.Equal(t, http.StatusOK, first(env.post(env.alice, "/v1/stake/unstake", map[string]any{"amount": 100})))
	env.advance(100)

	// Chunked requests arrive with an unknown length.
	req := httptest.NewRequest(http.MethodPost, "/v1/stake/claim", io.MultiReader())
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Authorization", "Bearer "+env.token(env.alice))
	rec := httptest.NewRecorder()
	env.server.Config.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := map[string]any{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.EqualValues(t, 400, body["claimed"])
}

func TestServerRewardFlow(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap()

	require.Equal(t, http.StatusOK, first(env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 300})))
	require.Equal(t, http.StatusOK, first(env.post(env.bob, "/v1/stake/deposit", map[string]any{"amount": 100})))

	status, body := env.post(env.admin, "/v1/rewards/deposit", map[string]any{"amount": 400})
	require.Equal(t, http.StatusOK, status, body)

	status, body = env.post(env.bob, "/v1/rewards/distribute", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 400, body["distributed"])

	status, body = env.post(env.alice, "/v1/rewards/collect", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 300, body["collected"])

	status, body = env.post(env.bob, "/v1/rewards/collect", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 100, body["collected"])

	status, body = env.post(env.bob, "/v1/rewards/collect", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "NoRewardsToClaim", errorCode(body))
}

func TestServerErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 10})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "NotInitialized", errorCode(body))

	env.bootstrap()

	status, body = env.post(crypto.Address{}, "/v1/stake/deposit", map[string]any{"amount": 10})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Unauthenticated", errorCode(body))

	status, body = env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 0})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "InvalidAmount", errorCode(body))

	status, body = env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 10, "extra": true})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "InvalidPayload", errorCode(body))

	status, body = env.post(env.alice, "/v1/admin/pause", nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Unauthorized", errorCode(body))

	status, body = env.post(env.alice, "/v1/stake/claim", map[string]any{"index": 0, "id": "x"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "InvalidSelector", errorCode(body))

	status, body = env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 500_000})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "InsufficientBalance", errorCode(body))

	status, body = env.get("/v1/stakes/" + env.bob.String())
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "StakeNotFound", errorCode(body))

	status, _ = env.get("/v1/stakes/not-an-address")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestServerAdminOperations(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap()
	require.Equal(t, http.StatusOK, first(env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 1_000})))

	status, body := env.post(env.admin, "/v1/admin/permissions", map[string]any{"allow_deposits": false})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, false, body["allowDeposits"])
	require.Equal(t, true, body["allowWithdrawals"])

	status, body = env.post(env.bob, "/v1/stake/deposit", map[string]any{"amount": 10})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "DepositsNotAllowed", errorCode(body))

	status, body = env.post(env.admin, "/v1/admin/vesting-period", map[string]any{"seconds": 0})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "InvalidVestingPeriod", errorCode(body))

	status, body = env.post(env.admin, "/v1/admin/emergency-withdraw", map[string]any{"amount": 10})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "VaultNotPaused", errorCode(body))

	require.Equal(t, http.StatusOK, first(env.post(env.admin, "/v1/admin/pause", nil)))

	status, body = env.post(env.alice, "/v1/rewards/distribute", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "VaultPaused", errorCode(body))

	status, body = env.post(env.admin, "/v1/admin/emergency-withdraw", map[string]any{"amount": 0})
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 1_000, body["withdrawn"])

	require.Equal(t, http.StatusOK, first(env.post(env.admin, "/v1/admin/unpause", nil)))
	status, body = env.post(env.admin, "/v1/admin/unpause", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "NotPaused", errorCode(body))

	require.Contains(t, env.sink.types(), events.TypeEmergencyWithdrawal)
	require.Contains(t, env.sink.types(), events.TypePermissionsUpdated)
}

func TestServerModulePauseReturnsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap()
	env.node.Pauses.Set("vault", true)

	status, body := env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 10})
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "ModulePaused", errorCode(body))

	env.node.Pauses.Set("vault", false)
	require.Equal(t, http.StatusOK, first(env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 10})))
}

func TestServerRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *config.Config) {
		cfg.Limiter = NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	})
	status, _ := env.post(env.admin, "/v1/vault/initialize", nil)
	require.Equal(t, http.StatusOK, status)
	status, body := env.post(env.admin, "/v1/admin/pause", nil)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, "RateLimited", errorCode(body))
	// Another caller has its own budget.
	status, _ = env.post(env.alice, "/v1/rewards/distribute", nil)
	require.Equal(t, http.StatusOK, status)
}

func TestServerFaucetRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap()

	status, body := env.post(env.alice, "/v1/dev/fund", map[string]any{"account": env.alice.String(), "amount": 5})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Unauthorized", errorCode(body))

	status, body = env.post(env.admin, "/v1/dev/fund", map[string]any{"account": env.alice.String(), "amount": 2_000_000})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "InvalidAmount", errorCode(body))
}

func TestServerStreamsEvents(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/events/ws?types=" + events.TypeStakeDeposited
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The subscription is registered asynchronously after the upgrade.
	require.Eventually(t, func() bool {
		return subscriberCount(env.hub) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Filtered out by the subscription.
	require.Equal(t, http.StatusOK, first(env.post(env.admin, "/v1/admin/vesting-period", map[string]any{"seconds": 200})))
	require.Equal(t, http.StatusOK, first(env.post(env.alice, "/v1/stake/deposit", map[string]any{"amount": 42})))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt struct {
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypeStakeDeposited, evt.Type)
	require.Equal(t, "42", evt.Attributes["amount"])
	require.Equal(t, env.alice.String(), evt.Attributes["owner"])
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.get("/healthz")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func subscriberCount(hub *Hub) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subs)
}

func first(status int, _ map[string]any) int { return status }
