package handshake

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"aervo/internal/session"
	"aervo/pkg/config"
	"aervo/pkg/domainerrors"
	"aervo/pkg/metrics"
	"aervo/pkg/tenants"
)

// VerifiedCallback is only produced by HandleCallback after the state and signature checks
// passed, and is the only input ExchangeCode accepts.
type VerifiedCallback struct {
	sid   string
	shop  string
	code  string
	phase Phase
}

func (v VerifiedCallback) Shop() string { return v.shop }

// Service runs the initiate, callback and exchange steps.
type Service struct {
	cfg      config.Config
	platform Platform
	states   *StateManager
	sessions session.Store
	store    tenants.Store
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger
}

func NewService(cfg config.Config, platform Platform, sessions session.Store, store tenants.Store, m *metrics.Metrics, log *zap.SugaredLogger) *Service {
	return &Service{
		cfg:      cfg,
		platform: platform,
		states:   NewStateManager(sessions, cfg.StateTTL),
		sessions: sessions,
		store:    store,
		metrics:  m,
		log:      log,
	}
}

// Initiate issues a state token for the shop and returns the consent URL to redirect to.
// An empty hint falls back to the shop already connected on this session; with neither,
// ErrShopRequired tells the caller to ask for one.
func (s *Service) Initiate(ctx context.Context, sid, shopHint string) (string, error) {
	if !s.cfg.HandshakeReady() {
		return "", ErrNotConfigured
	}
	raw := strings.TrimSpace(shopHint)
	if raw == "" {
		sess, err := s.sessions.Get(ctx, sid)
		if err != nil {
			return "", err
		}
		raw = sess.ConnectedShop
	}
	if raw == "" {
		return "", ErrShopRequired
	}
	shop, err := tenants.NormalizeShop(raw, s.cfg.ShopDomainSuffix)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeBadRequest, "Invalid shop domain")
	}
	phase := advance(PhaseIdle, PhaseAwaitingConsent)
	token, err := s.states.Issue(ctx, sid, shop, phase)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeStorage, retryMessage)
	}
	s.metrics.HandshakeStarted()
	s.log.Infow("handshake initiated", "shop", shop, "phase", phase)
	return s.platform.ConsentURL(shop, token), nil
}

// HandleCallback checks the redirect from the platform: required params, then the state token
// bound to this session, then the message signature. Any failure ends the attempt.
func (s *Service) HandleCallback(ctx context.Context, sid string, query url.Values) (VerifiedCallback, error) {
	if !s.cfg.HandshakeReady() {
		return VerifiedCallback{}, ErrNotConfigured
	}
	phase := s.callbackPhase(ctx, sid)
	params, err := ParseCallback(query)
	if err != nil {
		return VerifiedCallback{}, s.fail(phase, "", err)
	}
	shop := params.Shop
	if n, err := tenants.NormalizeShop(params.Shop, s.cfg.ShopDomainSuffix); err == nil {
		shop = n
	}
	ok, err := s.states.Validate(ctx, sid, params.State, shop)
	if err != nil {
		return VerifiedCallback{}, s.fail(phase, shop, domainerrors.Wrap(err, domainerrors.CodeStorage, retryMessage))
	}
	if !ok {
		return VerifiedCallback{}, s.fail(phase, shop, ErrInvalidState)
	}
	if !params.Verify(s.cfg.ClientSecret) {
		return VerifiedCallback{}, s.fail(phase, shop, ErrIntegrityCheckFailed)
	}
	return VerifiedCallback{
		sid:   sid,
		shop:  shop,
		code:  params.Code,
		phase: advance(phase, PhaseExchanging),
	}, nil
}

// callbackPhase resumes the attempt recorded on the session, moving it from awaiting consent to
// awaiting callback. A callback with no live attempt on record starts in awaiting callback so that
// it can only fail.
func (s *Service) callbackPhase(ctx context.Context, sid string) Phase {
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil || sess.Pending == nil {
		return PhaseAwaitingCallback
	}
	recorded, ok := parsePhase(sess.Pending.Phase)
	if !ok || !recorded.CanTransition(PhaseAwaitingCallback) {
		return PhaseAwaitingCallback
	}
	return advance(recorded, PhaseAwaitingCallback)
}

// ExchangeCode trades the code for a credential, persists it and returns the dashboard URL.
// Nothing is stored unless the exchange succeeds, and a failed store write fails the handshake.
func (s *Service) ExchangeCode(ctx context.Context, vc VerifiedCallback) (string, error) {
	if vc.phase != PhaseExchanging || vc.shop == "" {
		return "", ErrInvalidState
	}
	start := time.Now()
	grant, err := s.platform.Exchange(ctx, vc.shop, vc.code)
	s.metrics.ObserveExchange(time.Since(start))
	if err != nil {
		return "", s.fail(vc.phase, vc.shop, exchangeFailed(err))
	}
	scope := grant.Scope
	if scope == "" {
		scope = s.cfg.Scopes
	}
	if err := s.store.Upsert(ctx, vc.shop, grant.AccessToken, scope); err != nil {
		s.metrics.StoreError("upsert")
		return "", s.fail(vc.phase, vc.shop, domainerrors.Wrap(err, domainerrors.CodeStorage, retryMessage))
	}
	if err := s.sessions.SetConnected(ctx, vc.sid, vc.shop); err != nil {
		// the credential is durable; only the session convenience is lost
		s.log.Warnw("mark session connected", "shop", vc.shop, "err", err)
	}
	phase := advance(vc.phase, PhaseConnected)
	s.metrics.HandshakeOutcome(phase.String())
	s.log.Infow("shop connected", "shop", vc.shop, "scope", scope, "phase", phase)
	return s.successURL(vc.shop), nil
}

// Complete runs HandleCallback and ExchangeCode back to back.
func (s *Service) Complete(ctx context.Context, sid string, query url.Values) (string, error) {
	vc, err := s.HandleCallback(ctx, sid, query)
	if err != nil {
		return "", err
	}
	return s.ExchangeCode(ctx, vc)
}

func (s *Service) successURL(shop string) string {
	return s.cfg.DashboardPath + "?shop=" + url.QueryEscape(shop) + "&connected=1"
}

func (s *Service) fail(from Phase, shop string, err error) error {
	phase := advance(from, PhaseFailed)
	code := domainerrors.CodeOf(err)
	s.metrics.HandshakeOutcome(string(code))
	s.log.Warnw("handshake failed", "shop", shop, "code", code, "phase", phase, "err", err)
	return err
}
