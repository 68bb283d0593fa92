package gateway

import (
	"context"

	jmes "github.com/jmespath/go-jmespath"
	"golang.org/x/sync/errgroup"

	"aervo/pkg/domainerrors"
)

// ShopMetrics is the dashboard summary computed from recent orders and the product list.
type ShopMetrics struct {
	OrdersCount       int     `json:"orders_count"`
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
	ProductsCount     int     `json:"products_count"`
}

var (
	ordersCountExpr   = jmes.MustCompile("length(orders || `[]`)")
	revenueExpr       = jmes.MustCompile("sum(orders[].to_number(total_price) || `[]`)")
	productsCountExpr = jmes.MustCompile("length(products || `[]`)")
)

// Metrics fetches orders and products concurrently; either failure cancels the other.
func (g *Gateway) Metrics(ctx context.Context, shop string) (ShopMetrics, error) {
	var ordersDoc, productsDoc any
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		doc, err := g.fetchJSON(ctx, shop, "orders", "orders.json?limit=50&status=any")
		ordersDoc = doc
		return err
	})
	eg.Go(func() error {
		doc, err := g.fetchJSON(ctx, shop, "products", "products.json?limit=250")
		productsDoc = doc
		return err
	})
	if err := eg.Wait(); err != nil {
		return ShopMetrics{}, err
	}

	var out ShopMetrics
	n, err := searchNumber(ordersCountExpr, ordersDoc)
	if err != nil {
		return ShopMetrics{}, err
	}
	out.OrdersCount = int(n)
	if out.TotalRevenue, err = searchNumber(revenueExpr, ordersDoc); err != nil {
		return ShopMetrics{}, err
	}
	if out.OrdersCount > 0 {
		out.AverageOrderValue = out.TotalRevenue / float64(out.OrdersCount)
	}
	if n, err = searchNumber(productsCountExpr, productsDoc); err != nil {
		return ShopMetrics{}, err
	}
	out.ProductsCount = int(n)
	return out, nil
}

func searchNumber(expr *jmes.JMESPath, doc any) (float64, error) {
	v, err := expr.Search(doc)
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeUpstream, "unexpected upstream payload")
	}
	f, _ := v.(float64)
	return f, nil
}
