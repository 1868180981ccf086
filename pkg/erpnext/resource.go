package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Filter is one `[field, operator, value]` triple in the query language
// shared by the resource and method APIs.
type Filter struct {
	Field string
	Op    string
	Value any
}

// MarshalJSON encodes the filter as the wire-format triple.
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Field, f.Op, f.Value})
}

// Eq builds an equality filter, the common case.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: "=", Value: value}
}

// ListOptions narrows a list fetch. A zero value fetches default fields
// with the server's default page size.
type ListOptions struct {
	Fields  []string
	Filters []Filter
	OrderBy string
	Limit   int
	Start   int
}

func (o ListOptions) query() (url.Values, error) {
	q := url.Values{}
	if len(o.Fields) > 0 {
		fields, err := json.Marshal(o.Fields)
		if err != nil {
			return nil, fmt.Errorf("encoding fields: %w", err)
		}
		q.Set("fields", string(fields))
	}
	if len(o.Filters) > 0 {
		filters, err := json.Marshal(o.Filters)
		if err != nil {
			return nil, fmt.Errorf("encoding filters: %w", err)
		}
		q.Set("filters", string(filters))
	}
	if o.OrderBy != "" {
		q.Set("order_by", o.OrderBy)
	}
	if o.Limit > 0 {
		q.Set("limit_page_length", strconv.Itoa(o.Limit))
	}
	if o.Start > 0 {
		q.Set("limit_start", strconv.Itoa(o.Start))
	}
	return q, nil
}

func (c *Client) resourceURL(doctype, name string) string {
	u := c.baseURL + "/api/resource/" + url.PathEscape(doctype)
	if name != "" {
		u += "/" + url.PathEscape(name)
	}
	return u
}

// List fetches rows of a doctype through the resource API and decodes the
// "data" array into out (a pointer to a slice).
func (c *Client) List(ctx context.Context, doctype string, opts ListOptions, out any) error {
	q, err := opts.query()
	if err != nil {
		return err
	}
	apiURL := c.resourceURL(doctype, "")
	if len(q) > 0 {
		apiURL += "?" + q.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, apiURL, nil, dataEnvelope(out))
}

// Get fetches a single document by name.
func (c *Client) Get(ctx context.Context, doctype, name string, out any) error {
	return c.doJSON(ctx, http.MethodGet, c.resourceURL(doctype, name), nil, dataEnvelope(out))
}

// Insert creates a document through the resource API. The created document
// (with its server-assigned name) is decoded into out when non-nil.
func (c *Client) Insert(ctx context.Context, doctype string, doc, out any) error {
	return c.doJSON(ctx, http.MethodPost, c.resourceURL(doctype, ""), doc, dataEnvelope(out))
}

// Update applies a partial document to an existing record.
func (c *Client) Update(ctx context.Context, doctype, name string, patch, out any) error {
	return c.doJSON(ctx, http.MethodPut, c.resourceURL(doctype, name), patch, dataEnvelope(out))
}

// dataEnvelope wraps out so the resource API's {"data": ...} envelope
// decodes straight into it. A nil out discards the payload.
func dataEnvelope(out any) any {
	if out == nil {
		return nil
	}
	return &struct {
		Data any `json:"data"`
	}{Data: out}
}

// doJSON performs one request with auth attached, decoding a JSON body into
// envelope and converting non-2xx responses into *APIError.
func (c *Client) doJSON(ctx context.Context, method, apiURL string, body, envelope any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.doFunc(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			c.logger.Debug("failed to read error response body", "error", readErr)
		}
		apiErr := parseAPIError(resp.StatusCode, raw)
		c.logger.Debug("ERP request failed", "method", method, "url", apiURL,
			"status", resp.StatusCode, "exc_type", apiErr.ExcType)
		return apiErr
	}

	if envelope == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
