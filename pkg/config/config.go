// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Platform app credentials. ClientSecret doubles as the callback HMAC key.
	ClientID     string
	ClientSecret string
	Scopes       string // comma separated, sent verbatim to the platform
	APIVersion   string

	// Public base address used to build the callback URL.
	PublicURL     string
	DashboardPath string

	// Session cookie signing. Never the platform secret.
	SessionSecret string
	SessionTTL    time.Duration
	StateTTL      time.Duration
	CookieSecure  bool

	// Credential store location: Postgres wins over SQLite; DBFile ":memory:" keeps tokens in process.
	DatabaseURL   string
	DBFile        string
	EncryptionKey string

	// Session store; empty keeps sessions in process.
	RedisURL string

	ShopDomainSuffix string
	OutboundTimeout  time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	public := env("APP_URL", env("HOST", "http://localhost:3000"))
	cfg := Config{
		Env:              env("AERVO_ENV", "dev"),
		HTTPAddr:         env("HTTP_ADDR", ":"+env("PORT", "3000")),
		ClientID:         env("SHOPIFY_API_KEY", ""),
		ClientSecret:     env("SHOPIFY_API_SECRET", ""),
		Scopes:           env("SHOPIFY_SCOPES", "read_products,read_orders"),
		APIVersion:       env("SHOPIFY_API_VERSION", "2024-01"),
		PublicURL:        strings.TrimRight(public, "/"),
		DashboardPath:    env("DASHBOARD_PATH", "/dashboard"),
		SessionSecret:    env("SESSION_SECRET", ""),
		SessionTTL:       envDur("SESSION_TTL_SEC", 86400) * time.Second,
		StateTTL:         envDur("STATE_TTL_SEC", 600) * time.Second,
		CookieSecure:     envBool("COOKIE_SECURE", strings.HasPrefix(strings.ToLower(public), "https://")),
		DatabaseURL:      env("DATABASE_URL", ""),
		DBFile:           env("DB_FILE", "./data.sqlite"),
		EncryptionKey:    env("ENCRYPTION_KEY", ""),
		RedisURL:         env("REDIS_URL", ""),
		ShopDomainSuffix: strings.ToLower(env("SHOP_DOMAIN_SUFFIX", "")),
		OutboundTimeout:  envDur("HTTP_CLIENT_TIMEOUT_SEC", 15) * time.Second,
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		log.Println("[WARN] SHOPIFY_API_KEY or SHOPIFY_API_SECRET not set; handshake endpoints will refuse requests")
	}
	if cfg.SessionSecret == "" {
		log.Println("[WARN] SESSION_SECRET not set; sessions will not survive a restart")
	}
	return cfg
}

// HandshakeReady reports whether the platform app credentials are present.
func (c Config) HandshakeReady() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// CallbackURL is the absolute redirect target registered with the platform.
func (c Config) CallbackURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/auth/shopify/callback"
}

// ScopeList splits Scopes on commas, dropping blanks.
func (c Config) ScopeList() []string {
	var out []string
	for _, s := range strings.Split(c.Scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i <= 0 {
			return time.Duration(def)
		}
		return time.Duration(i)
	}
	return time.Duration(def)
}
