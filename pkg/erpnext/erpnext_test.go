package erpnext

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	httpClient := srv.Client()
	doFunc := func(_ context.Context, req *http.Request) (*http.Response, error) {
		return httpClient.Do(req)
	}
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewClient(logger, srv.URL, "key", "secret", doFunc)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestFilterEncoding(t *testing.T) {
	filters := []Filter{
		Eq("employee", "HR-EMP-001"),
		{Field: "time", Op: ">=", Value: "2025-03-01 00:00:00"},
	}
	encoded, err := json.Marshal(filters)
	if err != nil {
		t.Fatal(err)
	}
	want := `[["employee","=","HR-EMP-001"],["time",">=","2025-03-01 00:00:00"]]`
	if string(encoded) != want {
		t.Errorf("encoded filters = %s, want %s", encoded, want)
	}
}

func TestListQueryParameters(t *testing.T) {
	var gotQuery map[string][]string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		if got := r.Header.Get("Authorization"); got != "token key:secret" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"name":"CHK-0001","log_type":"IN"}]}`))
	}))

	var rows []CheckinEvent
	err := client.List(context.Background(), DoctypeCheckin, ListOptions{
		Fields:  []string{"name", "log_type"},
		Filters: []Filter{Eq("employee", "HR-EMP-001")},
		OrderBy: "time asc",
		Limit:   500,
	}, &rows)
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 1 || rows[0].Name != "CHK-0001" {
		t.Fatalf("rows = %+v", rows)
	}
	if got := gotQuery["limit_page_length"]; len(got) != 1 || got[0] != "500" {
		t.Errorf("limit_page_length = %v", got)
	}
	if got := gotQuery["filters"]; len(got) != 1 || got[0] != `[["employee","=","HR-EMP-001"]]` {
		t.Errorf("filters = %v", got)
	}
	if got := gotQuery["order_by"]; len(got) != 1 || got[0] != "time asc" {
		t.Errorf("order_by = %v", got)
	}
}

func TestListWithFallbackUsesMethodAPI(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/resource/Lead":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"exc_type":"PermissionError","message":"Not permitted"}`))
		case r.URL.Path == "/api/method/frappe.client.get_list":
			if r.URL.Query().Get("doctype") != "Lead" {
				t.Errorf("doctype = %q", r.URL.Query().Get("doctype"))
			}
			_, _ = w.Write([]byte(`{"message":[{"name":"CRM-LEAD-0001","status":"Open"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	rows, err := client.ListWithFallback(context.Background(), DoctypeLead, ListOptions{
		Filters: []Filter{Eq("status", "Open")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].PickString("name") != "CRM-LEAD-0001" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestListWithFallbackClientSideFilter(t *testing.T) {
	resourceCalls := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/resource/Lead":
			resourceCalls++
			if r.URL.Query().Get("filters") != "" {
				// Filtered resource query rejected.
				w.WriteHeader(http.StatusExpectationFailed)
				_, _ = w.Write([]byte(`{"exc_type":"ValidationError"}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":[
				{"name":"CRM-LEAD-0001","status":"Open"},
				{"name":"CRM-LEAD-0002","status":"Converted"}
			]}`))
		case "/api/method/frappe.client.get_list":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"exc_type":"PermissionError"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	rows, err := client.ListWithFallback(context.Background(), DoctypeLead, ListOptions{
		Filters: []Filter{Eq("status", "Open")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].PickString("name") != "CRM-LEAD-0001" {
		t.Fatalf("rows = %+v", rows)
	}
	if resourceCalls != 2 {
		t.Errorf("resource endpoint called %d times, want 2", resourceCalls)
	}
}

func TestListWithFallbackClientFilterFetchesPastLimit(t *testing.T) {
	// The caller wants one Open lead; the unfiltered fetch must not be
	// truncated to that limit or the only match (second row) is missed.
	var unfilteredLimit string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/resource/Lead":
			if r.URL.Query().Get("filters") != "" {
				w.WriteHeader(http.StatusExpectationFailed)
				_, _ = w.Write([]byte(`{"exc_type":"ValidationError"}`))
				return
			}
			unfilteredLimit = r.URL.Query().Get("limit_page_length")
			_, _ = w.Write([]byte(`{"data":[
				{"name":"CRM-LEAD-0001","status":"Converted"},
				{"name":"CRM-LEAD-0002","status":"Open"},
				{"name":"CRM-LEAD-0003","status":"Open"}
			]}`))
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"exc_type":"PermissionError"}`))
		}
	}))

	rows, err := client.ListWithFallback(context.Background(), DoctypeLead, ListOptions{
		Filters: []Filter{Eq("status", "Open")},
		Limit:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if unfilteredLimit == "1" {
		t.Errorf("unfiltered fetch kept the caller's limit %q", unfilteredLimit)
	}
	if len(rows) != 1 || rows[0].PickString("name") != "CRM-LEAD-0002" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestListWithFallbackAllFail(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))

	_, err := client.ListWithFallback(context.Background(), DoctypeLead, ListOptions{})
	if err == nil {
		t.Fatal("want error when every strategy fails")
	}
}

func TestLoginStoresSession(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/method/login" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("usr") != "jane@example.com" || r.PostForm.Get("pwd") != "hunter2" {
			t.Errorf("form = %v", r.PostForm)
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc123"})
		_, _ = w.Write([]byte(`{"message":"Logged In","full_name":"Jane Doe"}`))
	}))
	client.apiKey, client.apiSecret = "", "" // password-only site

	result, err := client.Login(context.Background(), "jane@example.com", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if result.FullName != "Jane Doe" || result.SessionID != "abc123" {
		t.Errorf("result = %+v", result)
	}
	if client.sessionID != "abc123" {
		t.Errorf("session not stored on client: %q", client.sessionID)
	}
}

func TestLoginRejected(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid login credentials"}`))
	}))

	if _, err := client.Login(context.Background(), "jane@example.com", "wrong"); err == nil {
		t.Fatal("want error for rejected login")
	}
}

func TestParseAPIErrorServerMessages(t *testing.T) {
	body := []byte(`{"exc_type":"OverlapError","_server_messages":"[\"{\\\"message\\\": \\\"Employee has already applied for leave between <b>2025-03-01</b> and 2025-03-05\\\"}\"]"}`)
	apiErr := parseAPIError(417, body)

	if apiErr.ExcType != "OverlapError" {
		t.Errorf("ExcType = %q", apiErr.ExcType)
	}
	if len(apiErr.ServerMessages) != 1 {
		t.Fatalf("ServerMessages = %v", apiErr.ServerMessages)
	}
	want := "Employee has already applied for leave between 2025-03-01 and 2025-03-05"
	if apiErr.ServerMessages[0] != want {
		t.Errorf("message = %q, want %q", apiErr.ServerMessages[0], want)
	}
}

func TestParseAPIErrorNonJSON(t *testing.T) {
	apiErr := parseAPIError(502, []byte("<html>Bad Gateway</html>"))
	if apiErr.StatusCode != 502 || apiErr.Message == "" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestFriendly(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{"overlap by exc_type", &APIError{StatusCode: 417, ExcType: "OverlapError"},
			"leave already applied for these dates"},
		{"overlap by text", &APIError{StatusCode: 417, Message: "dates overlap with LA-0001"},
			"leave already applied for these dates"},
		{"auth", &APIError{StatusCode: 401},
			"signed out by the server, check credentials or log in again"},
		{"duplicate", &APIError{StatusCode: 409, ExcType: "DuplicateEntryError"},
			"a matching record already exists"},
		{"passthrough", &APIError{StatusCode: 500, Message: "boom"},
			"ERP returned status 500: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Friendly(tt.err); got != tt.want {
				t.Errorf("Friendly() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatchFilter(t *testing.T) {
	doc := Doc{
		"status":    "Open",
		"total":     float64(12),
		"lead_name": "Acme Industrial",
		"date":      "2025-03-10",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"eq match", Eq("status", "Open"), true},
		{"eq miss", Eq("status", "Closed"), false},
		{"neq", Filter{Field: "status", Op: "!=", Value: "Closed"}, true},
		{"gt number", Filter{Field: "total", Op: ">", Value: 10}, true},
		{"lte number", Filter{Field: "total", Op: "<=", Value: 11}, false},
		{"like", Filter{Field: "lead_name", Op: "like", Value: "%acme%"}, true},
		{"in", Filter{Field: "status", Op: "in", Value: []string{"Open", "Replied"}}, true},
		{"date gte", Filter{Field: "date", Op: ">=", Value: "2025-03-01"}, true},
		{"missing field", Eq("owner", "x"), false},
		{"unknown op fails closed", Filter{Field: "status", Op: "between", Value: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchFilter(doc, tt.filter); got != tt.want {
				t.Errorf("matchFilter(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestDocPickString(t *testing.T) {
	doc := Doc{"custom_location": "Main Office", "device_id": ""}
	if got := doc.PickString("location", "custom_location", "device_id"); got != "Main Office" {
		t.Errorf("PickString = %q", got)
	}
	if got := doc.PickString("missing"); got != "" {
		t.Errorf("PickString on missing = %q", got)
	}
}

func TestSplitOptions(t *testing.T) {
	got := splitOptions("\nOpen\nReplied\nConverted")
	if len(got) != 3 || got[0] != "Open" || got[2] != "Converted" {
		t.Errorf("splitOptions = %v", got)
	}
}
