package tenants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShop(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		suffix string
		want   string
	}{
		{name: "bare host", raw: "shop-a.example", want: "shop-a.example"},
		{name: "trims and lowercases", raw: "  Shop-A.Example ", want: "shop-a.example"},
		{name: "strips scheme", raw: "https://my-shop.myshopify.com/", want: "my-shop.myshopify.com"},
		{name: "strips port", raw: "my-shop.myshopify.com:443", want: "my-shop.myshopify.com"},
		{name: "suffix satisfied", raw: "my-shop.myshopify.com", suffix: ".myshopify.com", want: "my-shop.myshopify.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeShop(tt.raw, tt.suffix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeShopRejects(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		suffix string
	}{
		{name: "empty", raw: "   "},
		{name: "single label", raw: "localhost"},
		{name: "path", raw: "https://shop.example/admin"},
		{name: "user info", raw: "https://evil@shop.example"},
		{name: "bad characters", raw: "shop_a.example"},
		{name: "embedded slash", raw: "shop.example/evil"},
		{name: "suffix mismatch", raw: "shop.example", suffix: ".myshopify.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeShop(tt.raw, tt.suffix)
			assert.Error(t, err)
		})
	}
}
