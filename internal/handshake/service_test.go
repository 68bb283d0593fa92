package handshake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"aervo/internal/session"
	"aervo/pkg/config"
	"aervo/pkg/domainerrors"
	"aervo/pkg/logger"
	"aervo/pkg/metrics"
	"aervo/pkg/tenants"
	"aervo/pkg/tenants/mocks"
)

// fakePlatform serves the token endpoint and counts exchanges.
type fakePlatform struct {
	srv       *httptest.Server
	exchanges int32
	status    int
	body      map[string]string
}

func newFakePlatform(t *testing.T) *fakePlatform {
	fp := &fakePlatform{
		status: http.StatusOK,
		body:   map[string]string{"access_token": "tok123", "scope": "read_products"},
	}
	fp.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fp.exchanges, 1)
		if err := r.ParseForm(); err != nil ||
			r.PostForm.Get("client_id") != "app-key" ||
			r.PostForm.Get("client_secret") != testSecret ||
			r.PostForm.Get("code") != "code-1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fp.status)
		_ = json.NewEncoder(w).Encode(fp.body)
	}))
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakePlatform) endpoints() Endpoints {
	return Endpoints{
		AuthorizeURL: ShopifyEndpoints().AuthorizeURL,
		TokenURL:     func(string) string { return fp.srv.URL + "/admin/oauth/access_token" },
	}
}

func testConfig() config.Config {
	return config.Config{
		ClientID:      "app-key",
		ClientSecret:  testSecret,
		Scopes:        "read_products,read_orders",
		PublicURL:     "https://app.example",
		DashboardPath: "/dashboard",
		SessionSecret: "session-secret",
		StateTTL:      10 * time.Minute,
	}
}

type fixture struct {
	svc      *Service
	sessions session.Store
	store    tenants.Store
	platform *fakePlatform
}

func newFixture(t *testing.T, store tenants.Store) *fixture {
	cfg := testConfig()
	fp := newFakePlatform(t)
	if store == nil {
		store = tenants.NewMemoryStore(logger.Nop())
	}
	sessions := session.NewMemoryStore(time.Hour)
	platform := NewOAuthPlatform(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL(), cfg.ScopeList(), fp.endpoints(), fp.srv.Client())
	svc := NewService(cfg, platform, sessions, store, metrics.New(prometheus.NewRegistry()), logger.Nop())
	return &fixture{svc: svc, sessions: sessions, store: store, platform: fp}
}

// initiate returns the state token embedded in the consent URL.
func (f *fixture) initiate(t *testing.T, sid, shop string) string {
	t.Helper()
	target, err := f.svc.Initiate(context.Background(), sid, shop)
	require.NoError(t, err)
	u, err := url.Parse(target)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func callbackQuery(shop, state, secret string) url.Values {
	fields := map[string]string{
		"shop":      shop,
		"code":      "code-1",
		"state":     state,
		"timestamp": "1700000000",
	}
	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hmac", Sign(fields, secret))
	return q
}

func TestInitiateBuildsConsentURL(t *testing.T) {
	f := newFixture(t, nil)
	target, err := f.svc.Initiate(context.Background(), "session-1", " Shop-A.example ")
	require.NoError(t, err)

	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "shop-a.example", u.Host)
	assert.Equal(t, "/admin/oauth/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "app-key", q.Get("client_id"))
	assert.Equal(t, "read_products,read_orders", q.Get("scope"))
	assert.Equal(t, "https://app.example/auth/shopify/callback", q.Get("redirect_uri"))
	assert.Len(t, q.Get("state"), 64)
	assert.Empty(t, q.Get("client_secret"))
}

func TestInitiateFallsBackToConnectedShop(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sessions.SetConnected(context.Background(), "session-1", "shop-a.example"))

	target, err := f.svc.Initiate(context.Background(), "session-1", "")
	require.NoError(t, err)
	u, _ := url.Parse(target)
	assert.Equal(t, "shop-a.example", u.Host)
}

func TestInitiateRequiresShop(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Initiate(context.Background(), "session-1", "")
	assert.ErrorIs(t, err, ErrShopRequired)

	_, err = f.svc.Initiate(context.Background(), "session-1", "https://evil.example/path")
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeBadRequest))
}

func TestNotConfigured(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.cfg.ClientSecret = ""

	_, err := f.svc.Initiate(context.Background(), "session-1", "shop-a.example")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = f.svc.HandleCallback(context.Background(), "session-1", url.Values{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEndToEndConnect(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	t1 := f.initiate(t, "session-1", "shop-a.example")

	target, err := f.svc.Complete(ctx, "session-1", callbackQuery("shop-a.example", t1, testSecret))
	require.NoError(t, err)
	assert.Equal(t, "/dashboard?shop=shop-a.example&connected=1", target)

	tok, err := f.store.Get(ctx, "shop-a.example")
	require.NoError(t, err)
	assert.Equal(t, "tok123", tok)

	sess, err := f.sessions.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "shop-a.example", sess.ConnectedShop)
	assert.Nil(t, sess.Pending)
}

func TestCallbackReplayFails(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	t1 := f.initiate(t, "session-1", "shop-a.example")
	q := callbackQuery("shop-a.example", t1, testSecret)

	_, err := f.svc.Complete(ctx, "session-1", q)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, "session-1", q)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.platform.exchanges))
}

func TestStaleStateAfterSecondInitiate(t *testing.T) {
	f := newFixture(t, nil)
	t1 := f.initiate(t, "session-1", "shop-a.example")
	f.initiate(t, "session-1", "shop-a.example")

	_, err := f.svc.Complete(context.Background(), "session-1", callbackQuery("shop-a.example", t1, testSecret))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, atomic.LoadInt32(&f.platform.exchanges))
}

func TestCallbackFromOtherSessionFails(t *testing.T) {
	f := newFixture(t, nil)
	t1 := f.initiate(t, "session-1", "shop-a.example")

	_, err := f.svc.Complete(context.Background(), "session-2", callbackQuery("shop-a.example", t1, testSecret))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCallbackShopMismatchFails(t *testing.T) {
	f := newFixture(t, nil)
	t1 := f.initiate(t, "session-1", "shop-a.example")

	_, err := f.svc.Complete(context.Background(), "session-1", callbackQuery("shop-b.example", t1, testSecret))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMissingParameters(t *testing.T) {
	f := newFixture(t, nil)
	for _, drop := range []string{"shop", "code", "state"} {
		t.Run(drop, func(t *testing.T) {
			q := callbackQuery("shop-a.example", "T1", testSecret)
			q.Del(drop)
			_, err := f.svc.HandleCallback(context.Background(), "session-1", q)
			assert.ErrorIs(t, err, ErrMissingParameters)
		})
	}
}

func TestForgedSignatureNeverWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	f := newFixture(t, store)
	t1 := f.initiate(t, "session-1", "shop-a.example")

	_, err := f.svc.Complete(context.Background(), "session-1", callbackQuery("shop-a.example", t1, "wrong-secret"))
	assert.ErrorIs(t, err, ErrIntegrityCheckFailed)
	assert.Zero(t, atomic.LoadInt32(&f.platform.exchanges))
}

func TestExchangeFailureStoresNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.platform.status = http.StatusBadRequest
	f.platform.body = map[string]string{"error": "invalid_grant"}
	t1 := f.initiate(t, "session-1", "shop-a.example")

	_, err := f.svc.Complete(context.Background(), "session-1", callbackQuery("shop-a.example", t1, testSecret))
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeExchangeFailed))
	assert.Equal(t, "Connection failed, please retry", err.Error())

	_, err = f.store.Get(context.Background(), "shop-a.example")
	assert.ErrorIs(t, err, tenants.ErrNotFound)
}

func TestExchangeWithoutAccessTokenFails(t *testing.T) {
	f := newFixture(t, nil)
	f.platform.body = map[string]string{"scope": "read_products"}
	t1 := f.initiate(t, "session-1", "shop-a.example")

	_, err := f.svc.Complete(context.Background(), "session-1", callbackQuery("shop-a.example", t1, testSecret))
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeExchangeFailed))
}

func TestMissingGrantedScopeFallsBackToRequested(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Upsert(gomock.Any(), "shop-a.example", "tok123", "read_products,read_orders").Return(nil)

	f := newFixture(t, store)
	f.platform.body = map[string]string{"access_token": "tok123"}
	t1 := f.initiate(t, "session-1", "shop-a.example")

	_, err := f.svc.Complete(context.Background(), "session-1", callbackQuery("shop-a.example", t1, testSecret))
	require.NoError(t, err)
}

func TestStorageErrorPreventsSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().
		Upsert(gomock.Any(), "shop-a.example", "tok123", "read_products").
		Return(domainerrors.New(domainerrors.CodeStorage, "credential store upsert failed"))

	f := newFixture(t, store)
	t1 := f.initiate(t, "session-1", "shop-a.example")

	target, err := f.svc.Complete(context.Background(), "session-1", callbackQuery("shop-a.example", t1, testSecret))
	assert.Empty(t, target)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeStorage))

	sess, err := f.sessions.Get(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Empty(t, sess.ConnectedShop)
}

func TestExchangeCodeRejectsUnverifiedValue(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.ExchangeCode(context.Background(), VerifiedCallback{})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, atomic.LoadInt32(&f.platform.exchanges))
}

func TestInitiateRecordsAttemptPhase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.initiate(t, "session-1", "shop-a.example")

	sess, err := f.sessions.Get(ctx, "session-1")
	require.NoError(t, err)
	require.NotNil(t, sess.Pending)
	assert.Equal(t, "awaiting_consent", sess.Pending.Phase)

	recorded, ok := parsePhase(sess.Pending.Phase)
	require.True(t, ok)
	assert.Equal(t, PhaseAwaitingConsent, recorded)
	assert.Equal(t, PhaseAwaitingCallback, f.svc.callbackPhase(ctx, "session-1"))
	assert.Equal(t, PhaseAwaitingCallback, f.svc.callbackPhase(ctx, "session-without-attempt"))
}

func TestHandleCallbackNormalizesShop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	t1 := f.initiate(t, "session-1", "Shop-A.example")

	vc, err := f.svc.HandleCallback(ctx, "session-1", callbackQuery("Shop-A.example", t1, testSecret))
	require.NoError(t, err)
	assert.Equal(t, "shop-a.example", vc.Shop())

	target, err := f.svc.ExchangeCode(ctx, vc)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard?shop=shop-a.example&connected=1", target)
}
