// Package erpnext is a thin client for the ERPNext/Frappe HTTP APIs.
package erpnext

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to one ERPNext site via its resource (REST) and method (RPC)
// endpoint families. The ERP is the sole data authority; the client only
// issues requests and decodes responses.
type Client struct {
	logger    *slog.Logger
	baseURL   string
	apiKey    string
	apiSecret string
	sessionID string
	doFunc    func(context.Context, *http.Request) (*http.Response, error)
}

// NewClient creates a client for the site at baseURL. doFunc performs the
// actual HTTP round trip so callers can layer retries and caching on top;
// a nil doFunc falls back to a plain 30-second-timeout client.
func NewClient(logger *slog.Logger, baseURL, apiKey, apiSecret string, doFunc func(context.Context, *http.Request) (*http.Response, error)) *Client {
	if doFunc == nil {
		httpClient := defaultHTTPClient()
		doFunc = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return httpClient.Do(req.WithContext(ctx))
		}
	}
	return &Client{
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		doFunc:    doFunc,
	}
}

// SetSession switches the client to cookie-session auth using the sid
// obtained from a password login.
func (c *Client) SetSession(sid string) {
	c.sessionID = sid
}

// hasTokenAuth reports whether API-key credentials look usable. Frappe API
// keys and secrets are short opaque strings; empty or whitespace values are
// the only malformed shapes seen in practice.
func (c *Client) hasTokenAuth() bool {
	return strings.TrimSpace(c.apiKey) != "" && strings.TrimSpace(c.apiSecret) != ""
}

// authorize attaches credentials to a request. Token auth wins when both
// are configured so scripted use keeps working after a stale login.
func (c *Client) authorize(req *http.Request) {
	switch {
	case c.hasTokenAuth():
		req.Header.Set("Authorization", "token "+c.apiKey+":"+c.apiSecret)
	case c.sessionID != "":
		req.AddCookie(&http.Cookie{Name: "sid", Value: c.sessionID})
	}
	req.Header.Set("Accept", "application/json")
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}
