// cmd/connect-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"aervo/internal/gateway"
	"aervo/internal/handshake"
	"aervo/internal/session"
	"aervo/pkg/config"
	"aervo/pkg/db"
	"aervo/pkg/httpclient"
	"aervo/pkg/logger"
	"aervo/pkg/metrics"
	"aervo/pkg/middleware"
	"aervo/pkg/secretbox"
	"aervo/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	store := mustCredentialStore(cfg, log)
	sessions := session.Store(session.NewMemoryStore(cfg.SessionTTL))
	if rdb := db.MustRedis(cfg, log); rdb != nil {
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL)
		defer rdb.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	client := httpclient.New(cfg.OutboundTimeout)
	platform := handshake.NewOAuthPlatform(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL(), cfg.ScopeList(), handshake.ShopifyEndpoints(), client)
	svc := handshake.NewService(cfg, platform, sessions, store, m, log)
	gw := gateway.New(store, client, cfg.APIVersion, m, log)
	codec := session.NewCookieCodec(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure, log)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("aervo-connect", log))
	r.Use(middleware.AccessLog(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(codec, log))
		handshake.NewHandler(svc, log).RegisterRoutes(r)
	})
	gateway.NewHandler(gw, cfg.ShopDomainSuffix).RegisterRoutes(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("connect-service listening", "addr", cfg.HTTPAddr, "callback", cfg.CallbackURL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if err := store.Close(); err != nil {
		log.Warnw("credential store close", "err", err)
	}
	_ = middleware.ShutdownTracing(ctx)
	fmt.Println("connect-service stopped")
}

// mustCredentialStore opens Postgres when DATABASE_URL is set, else the SQLite file, else memory.
func mustCredentialStore(cfg config.Config, log *zap.SugaredLogger) tenants.Store {
	box := secretbox.New(cfg.EncryptionKey)
	if !box.Enabled() {
		log.Warnw("ENCRYPTION_KEY not set, access tokens stored in plaintext")
	}
	if pool := db.MustConnect(cfg, log); pool != nil {
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		return tenants.NewPostgresStore(pool, box, log)
	}
	handle, err := db.OpenSQLite(cfg, log)
	if err != nil {
		log.Fatalw("sqlite open", "file", cfg.DBFile, "err", err)
	}
	if handle == nil {
		log.Warnw("credential store is in memory, tokens are lost on restart")
		return tenants.NewMemoryStore(log)
	}
	store, err := tenants.NewSQLiteStore(context.Background(), handle, box, log)
	if err != nil {
		log.Fatalw("sqlite schema", "err", err)
	}
	return store
}
