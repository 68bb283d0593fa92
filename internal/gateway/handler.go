package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aervo/pkg/domainerrors"
	"aervo/pkg/tenants"
)

type Handler struct {
	gw     *Gateway
	suffix string
}

func NewHandler(gw *Gateway, shopSuffix string) *Handler {
	return &Handler{gw: gw, suffix: shopSuffix}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/shops", h.listShops)
	r.Route("/api/shop/{shop}", func(r chi.Router) {
		r.Get("/products", h.passthrough("products", "products.json?limit=10"))
		r.Get("/orders", h.passthrough("orders", "orders.json?limit=10"))
		r.Get("/metrics", h.metrics)
	})
}

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	list, err := h.gw.store.List(r.Context())
	if err != nil {
		h.gw.metrics.StoreError("list")
		h.writeError(w, err)
		return
	}
	h.gw.metrics.SetConnectedTenants(len(list))
	writeJSON(w, list, http.StatusOK)
}

func (h *Handler) passthrough(resource, path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := h.shopParam(w, r)
		if !ok {
			return
		}
		doc, err := h.gw.fetchJSON(r.Context(), shop, resource, path)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, doc, http.StatusOK)
	}
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.shopParam(w, r)
	if !ok {
		return
	}
	m, err := h.gw.Metrics(r.Context(), shop)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, m, http.StatusOK)
}

func (h *Handler) shopParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	shop, err := tenants.NormalizeShop(chi.URLParam(r, "shop"), h.suffix)
	if err != nil {
		writeJSON(w, map[string]string{"error": "invalid shop"}, http.StatusBadRequest)
		return "", false
	}
	return shop, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch domainerrors.CodeOf(err) {
	case domainerrors.CodeTenantNotConnected:
		writeJSON(w, map[string]string{"error": "shop not connected"}, http.StatusNotFound)
	case domainerrors.CodeUpstream:
		writeJSON(w, map[string]string{"error": "fetch failed"}, http.StatusBadGateway)
	case domainerrors.CodeBadRequest:
		writeJSON(w, map[string]string{"error": "bad request"}, http.StatusBadRequest)
	default:
		h.gw.log.Errorw("gateway failure", "err", err)
		writeJSON(w, map[string]string{"error": "internal error"}, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
