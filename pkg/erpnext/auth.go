package erpnext

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// LoginResult is the outcome of a password login.
type LoginResult struct {
	FullName  string
	SessionID string
}

// Login performs a cookie-session login with form-encoded credentials and
// switches the client to the returned sid. API-key sites never need this;
// it exists for deployments that only hand out passwords.
func (c *Client) Login(ctx context.Context, usr, pwd string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("usr", usr)
	form.Set("pwd", pwd)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.methodURL("login"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doFunc(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "invalid login credentials"}
	}

	var payload struct {
		FullName string `json:"full_name"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}

	result := &LoginResult{FullName: payload.FullName}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "sid" && cookie.Value != "" && cookie.Value != "Guest" {
			result.SessionID = cookie.Value
			break
		}
	}
	if result.SessionID == "" {
		return nil, fmt.Errorf("login succeeded but no session cookie returned")
	}

	c.SetSession(result.SessionID)
	c.logger.Debug("logged in", "user", usr, "full_name", result.FullName)
	return result, nil
}

// LoggedInUser asks the server who the current credentials belong to.
func (c *Client) LoggedInUser(ctx context.Context) (string, error) {
	var user string
	if err := c.doJSON(ctx, http.MethodGet,
		c.methodURL("frappe.auth.get_logged_user"), nil, messageEnvelope(&user)); err != nil {
		return "", err
	}
	return user, nil
}
