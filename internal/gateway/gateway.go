// Package gateway calls the platform's admin API on behalf of a connected shop.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"aervo/pkg/domainerrors"
	"aervo/pkg/metrics"
	"aervo/pkg/tenants"
)

var ErrTenantNotConnected = domainerrors.New(domainerrors.CodeTenantNotConnected, "shop not connected")

const maxBody = 4 << 20

type Gateway struct {
	store      tenants.Store
	client     *http.Client
	apiVersion string
	baseURL    func(shop string) string
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
}

func New(store tenants.Store, client *http.Client, apiVersion string, m *metrics.Metrics, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		store:      store,
		client:     client,
		apiVersion: apiVersion,
		baseURL:    func(shop string) string { return "https://" + shop },
		metrics:    m,
		log:        log,
	}
}

// AuthorizedRequest issues GET {shop}/admin/api/{version}/{resourcePath} with the stored access
// token. A shop without a credential yields ErrTenantNotConnected and no outbound call.
func (g *Gateway) AuthorizedRequest(ctx context.Context, shop, resourcePath string) (*http.Response, error) {
	token, err := g.store.Get(ctx, shop)
	if errors.Is(err, tenants.ErrNotFound) {
		return nil, ErrTenantNotConnected
	}
	if err != nil {
		g.metrics.StoreError("get")
		return nil, err
	}
	full := fmt.Sprintf("%s/admin/api/%s/%s", strings.TrimRight(g.baseURL(shop), "/"), g.apiVersion, strings.TrimLeft(resourcePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "invalid resource path")
	}
	req.Header.Set("X-Shopify-Access-Token", token)
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUpstream, "upstream unreachable")
	}
	return resp, nil
}

// fetchJSON runs AuthorizedRequest and decodes a 2xx JSON body.
func (g *Gateway) fetchJSON(ctx context.Context, shop, resource, resourcePath string) (any, error) {
	start := time.Now()
	resp, err := g.AuthorizedRequest(ctx, shop, resourcePath)
	if err != nil {
		g.metrics.GatewayRequest(resource, statusLabel(0, err), time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()
	g.metrics.GatewayRequest(resource, statusLabel(resp.StatusCode, nil), time.Since(start))
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUpstream, "upstream read failed")
	}
	if resp.StatusCode/100 != 2 {
		g.log.Warnw("upstream error", "shop", shop, "resource", resource, "status", resp.StatusCode)
		return nil, domainerrors.New(domainerrors.CodeUpstream, fmt.Sprintf("upstream returned %d", resp.StatusCode))
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUpstream, "upstream returned invalid JSON")
	}
	return doc, nil
}

func statusLabel(code int, err error) string {
	switch {
	case errors.Is(err, ErrTenantNotConnected):
		return "not_connected"
	case err != nil:
		return "error"
	default:
		return fmt.Sprintf("%dxx", code/100)
	}
}
