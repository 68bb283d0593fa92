package handshake

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Grant is what a successful code exchange yields.
type Grant struct {
	AccessToken string
	Scope       string
}

// Platform is the storefront side of the handshake.
type Platform interface {
	ConsentURL(shop, state string) string
	Exchange(ctx context.Context, shop, code string) (Grant, error)
}

// Endpoints locate the per-shop authorize and token URLs.
type Endpoints struct {
	AuthorizeURL func(shop string) string
	TokenURL     func(shop string) string
}

func ShopifyEndpoints() Endpoints {
	return Endpoints{
		AuthorizeURL: func(shop string) string { return fmt.Sprintf("https://%s/admin/oauth/authorize", shop) },
		TokenURL:     func(shop string) string { return fmt.Sprintf("https://%s/admin/oauth/access_token", shop) },
	}
}

// OAuthPlatform drives consent and exchange with golang.org/x/oauth2, one Config per shop.
type OAuthPlatform struct {
	clientID     string
	clientSecret string
	redirectURL  string
	scopes       []string
	endpoints    Endpoints
	client       *http.Client
}

func NewOAuthPlatform(clientID, clientSecret, redirectURL string, scopes []string, endpoints Endpoints, client *http.Client) *OAuthPlatform {
	if endpoints.AuthorizeURL == nil || endpoints.TokenURL == nil {
		endpoints = ShopifyEndpoints()
	}
	return &OAuthPlatform{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		scopes:       scopes,
		endpoints:    endpoints,
		client:       client,
	}
}

func (p *OAuthPlatform) config(shop string) *oauth2.Config {
	var scope []string
	if len(p.scopes) > 0 {
		// the platform expects a comma separated list in a single scope parameter
		scope = []string{strings.Join(p.scopes, ",")}
	}
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  p.redirectURL,
		Scopes:       scope,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.endpoints.AuthorizeURL(shop),
			TokenURL:  p.endpoints.TokenURL(shop),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (p *OAuthPlatform) ConsentURL(shop, state string) string {
	return p.config(shop).AuthCodeURL(state)
}

// Exchange trades the one-time code for an access token. It is never retried.
func (p *OAuthPlatform) Exchange(ctx context.Context, shop, code string) (Grant, error) {
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	tok, err := p.config(shop).Exchange(ctx, code)
	if err != nil {
		return Grant{}, err
	}
	if tok.AccessToken == "" {
		return Grant{}, fmt.Errorf("token response without access_token")
	}
	g := Grant{AccessToken: tok.AccessToken}
	if s, ok := tok.Extra("scope").(string); ok {
		g.Scope = s
	}
	return g, nil
}
