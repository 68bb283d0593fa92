package handshake

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aervo/internal/session"
	"aervo/pkg/domainerrors"
)

var connectForm = template.Must(template.New("connect").Parse(`<!doctype html>
<html>
  <head><meta charset="utf-8"><title>Connect your store</title></head>
  <body>
    <h2>Connect your store</h2>
    <p>Enter your store domain (example: <code>your-shop.myshopify.com</code>)</p>
    <form method="POST" action="/auth/shopify/start">
      <input name="shop" placeholder="your-shop.myshopify.com" value="{{.}}">
      <button type="submit">Connect</button>
    </form>
  </body>
</html>`))

type Handler struct {
	svc *Service
	log *zap.SugaredLogger
}

func NewHandler(svc *Service, log *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts the handshake endpoints. The router must run session.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/auth/shopify", h.initiate)
	r.Post("/auth/shopify/start", h.start)
	r.Get("/auth/shopify/callback", h.callback)
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	target, err := h.svc.Initiate(r.Context(), session.IDFrom(r.Context()), r.URL.Query().Get("shop"))
	if errors.Is(err, ErrShopRequired) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := connectForm.Execute(w, ""); err != nil {
			h.log.Errorw("render connect form", "err", err)
		}
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	shop := strings.TrimSpace(r.PostForm.Get("shop"))
	if shop == "" {
		h.writeError(w, ErrShopRequired)
		return
	}
	target, err := h.svc.Initiate(r.Context(), session.IDFrom(r.Context()), shop)
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	target, err := h.svc.Complete(r.Context(), session.IDFrom(r.Context()), r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var de *domainerrors.Error
	if !errors.As(err, &de) {
		h.log.Errorw("handshake: unexpected error", "err", err)
		http.Error(w, retryMessage, http.StatusInternalServerError)
		return
	}
	switch de.Code {
	case domainerrors.CodeMissingParameters, domainerrors.CodeInvalidState,
		domainerrors.CodeIntegrityCheckFailed, domainerrors.CodeBadRequest:
		http.Error(w, de.Message, http.StatusBadRequest)
	case domainerrors.CodeNotConfigured:
		http.Error(w, de.Message, http.StatusServiceUnavailable)
	default:
		http.Error(w, retryMessage, http.StatusInternalServerError)
	}
}
