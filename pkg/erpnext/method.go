package erpnext

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// The method API ("/api/method/...") exposes whitelisted server functions.
// The frappe.client family mirrors resource CRUD and succeeds on some sites
// where the resource endpoint rejects a query over permissions or schema.

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/api/method/" + method
}

// messageEnvelope wraps out for the method API's {"message": ...} envelope.
func messageEnvelope(out any) any {
	if out == nil {
		return nil
	}
	return &struct {
		Message any `json:"message"`
	}{Message: out}
}

// MethodGetList fetches rows via frappe.client.get_list.
func (c *Client) MethodGetList(ctx context.Context, doctype string, opts ListOptions, out any) error {
	q, err := opts.query()
	if err != nil {
		return err
	}
	q.Set("doctype", doctype)
	apiURL := c.methodURL("frappe.client.get_list") + "?" + q.Encode()
	return c.doJSON(ctx, http.MethodGet, apiURL, nil, messageEnvelope(out))
}

// MethodGetValue fetches selected fields of the first document matching the
// filters via frappe.client.get_value.
func (c *Client) MethodGetValue(ctx context.Context, doctype string, filters []Filter, fieldname string, out any) error {
	encoded, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("encoding filters: %w", err)
	}
	q := url.Values{}
	q.Set("doctype", doctype)
	q.Set("filters", string(encoded))
	q.Set("fieldname", fieldname)
	apiURL := c.methodURL("frappe.client.get_value") + "?" + q.Encode()
	return c.doJSON(ctx, http.MethodGet, apiURL, nil, messageEnvelope(out))
}

// MethodInsert creates a document via frappe.client.insert. doc must carry
// a "doctype" field.
func (c *Client) MethodInsert(ctx context.Context, doc, out any) error {
	body := struct {
		Doc any `json:"doc"`
	}{Doc: doc}
	return c.doJSON(ctx, http.MethodPost, c.methodURL("frappe.client.insert"), body, messageEnvelope(out))
}

// MethodSetValue updates a single field via frappe.client.set_value.
func (c *Client) MethodSetValue(ctx context.Context, doctype, name, fieldname string, value any) error {
	body := struct {
		Doctype   string `json:"doctype"`
		Name      string `json:"name"`
		Fieldname string `json:"fieldname"`
		Value     any    `json:"value"`
	}{Doctype: doctype, Name: name, Fieldname: fieldname, Value: value}
	return c.doJSON(ctx, http.MethodPost, c.methodURL("frappe.client.set_value"), body, nil)
}

// DocFieldOptions introspects the select options of a doctype field via the
// DocField metadata table. Options come back newline-separated.
func (c *Client) DocFieldOptions(ctx context.Context, doctype, fieldname string) ([]string, error) {
	var rows []struct {
		Options string `json:"options"`
	}
	opts := ListOptions{
		Fields: []string{"options"},
		Filters: []Filter{
			Eq("parent", doctype),
			Eq("fieldname", fieldname),
		},
		Limit: 1,
	}
	if err := c.MethodGetList(ctx, DoctypeDocField, opts, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].Options == "" {
		return nil, nil
	}
	return splitOptions(rows[0].Options), nil
}

func splitOptions(options string) []string {
	var out []string
	for _, line := range strings.Split(options, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
