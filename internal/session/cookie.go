package session

import (
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

const CookieName = "aervo_sid"

// CookieCodec signs the session id into a compact HS256 JWT so clients cannot pick their own id.
type CookieCodec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewCookieCodec builds a codec. An empty secret gets a random per-process key, which invalidates
// every session on restart.
func NewCookieCodec(secret string, ttl time.Duration, secure bool, log *zap.SugaredLogger) *CookieCodec {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			log.Fatalw("session key", "err", err)
		}
	}
	return &CookieCodec{secret: key, ttl: ttl, secure: secure, now: time.Now}
}

func (c *CookieCodec) Encode(sid string) (string, error) {
	now := c.now()
	tok, err := jwt.NewBuilder().
		Subject(sid).
		IssuedAt(now).
		Expiration(now.Add(c.ttl)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, c.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Decode verifies the signature and expiry and returns the session id.
func (c *CookieCodec) Decode(raw string) (string, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, c.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(c.now)),
	)
	if err != nil {
		return "", err
	}
	if tok.Subject() == "" {
		return "", errors.New("session cookie without subject")
	}
	return tok.Subject(), nil
}

// Middleware resolves the session id from the cookie, minting a fresh one when the cookie is
// missing, forged or expired, and stores it in the request context.
func Middleware(codec *CookieCodec, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ck, err := r.Cookie(CookieName); err == nil {
				if sid, err := codec.Decode(ck.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(WithID(r.Context(), sid)))
					return
				}
				log.Debugw("discarding invalid session cookie")
			}
			sid := uuid.NewString()
			val, err := codec.Encode(sid)
			if err != nil {
				log.Errorw("session cookie encode", "err", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    val,
				Path:     "/",
				MaxAge:   int(codec.ttl.Seconds()),
				HttpOnly: true,
				Secure:   codec.secure,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), sid)))
		})
	}
}
