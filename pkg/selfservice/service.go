// Package selfservice orchestrates the HR self-service workflows against a
// remote ERPNext site. All policy (attendance rules, leave entitlement,
// lead lifecycle) lives on the server; this package fetches, reshapes and
// submits.
package selfservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/amendsaccounting/erphr/pkg/erpnext"
	"github.com/amendsaccounting/erphr/pkg/httpcache"
)

// Service is the entry point for all self-service operations.
type Service struct {
	logger      *slog.Logger
	httpClient  *http.Client
	cache       *httpcache.Store
	erp         *erpnext.Client
	deviceID    string
	mockHistory bool

	mu         sync.Mutex
	employeeID string
}

// NewWithLogger builds a Service for the ERP at baseURL.
func NewWithLogger(ctx context.Context, logger *slog.Logger, baseURL string, opts ...Option) *Service {
	optHolder := &OptionHolder{}
	for _, opt := range opts {
		opt(optHolder)
	}

	var cache *httpcache.Store
	switch {
	case optHolder.noCache:
		logger.Debug("response caching disabled")
	case optHolder.memoryCache:
		cache = httpcache.NewMemory(12*time.Hour, logger)
	default:
		cacheDir := optHolder.cacheDir
		if cacheDir == "" {
			if userCacheDir, err := os.UserCacheDir(); err == nil {
				cacheDir = filepath.Join(userCacheDir, "erphr")
			} else {
				logger.Debug("could not determine user cache directory", "error", err)
			}
		}
		if cacheDir != "" {
			var err error
			cache, err = httpcache.New(ctx, cacheDir, 24*time.Hour, logger)
			if err != nil {
				logger.Warn("cache initialization failed", "error", err, "cache_dir", cacheDir)
				// Cache is optional, continue without it
				cache = nil
			}
		}
	}

	s := &Service{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cache:       cache,
		deviceID:    optHolder.deviceID,
		mockHistory: optHolder.mockHistory,
		employeeID:  optHolder.employeeID,
	}

	doFunc := s.retryableHTTPDo
	if cache != nil {
		doFunc = httpcache.NewTransport(cache, s.retryableHTTPDo, logger).Do
	}
	s.erp = erpnext.NewClient(logger, baseURL, optHolder.apiKey, optHolder.apiSecret, doFunc)

	return s
}

// ERP exposes the underlying client for operations not wrapped here.
func (s *Service) ERP() *erpnext.Client {
	return s.erp
}

// Close flushes and releases the response cache.
func (s *Service) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// Login performs a password login and returns the account's display name.
func (s *Service) Login(ctx context.Context, usr, pwd string) (string, error) {
	result, err := s.erp.Login(ctx, usr, pwd)
	if err != nil {
		return "", err
	}
	return result.FullName, nil
}

// retryableHTTPDo performs an HTTP request with exponential backoff and
// jitter inside a 15-second budget. The returned response body must be
// closed by the caller.
func (s *Service) retryableHTTPDo(ctx context.Context, req *http.Request) (*http.Response, error) {
	deadline := time.Now().Add(15 * time.Second)
	var resp *http.Response
	var lastErr error

	err := retry.Do(
		func() error {
			if time.Now().After(deadline) {
				return retry.Unrecoverable(errors.New("timeout after 15 seconds"))
			}

			var err error
			resp, err = s.httpClient.Do(req.WithContext(ctx)) //nolint:bodyclose // Body closed on error, returned open on success for caller
			if err != nil {
				lastErr = err
				return err
			}

			// Client errors are the server's final word: a 403 here must
			// reach the strategy chain, not burn the retry budget.
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				body, readErr := io.ReadAll(resp.Body)
				closeErr := resp.Body.Close()
				if readErr != nil {
					s.logger.Debug("failed to read error response body", "error", readErr)
				}
				if closeErr != nil {
					s.logger.Debug("failed to close error response body", "error", closeErr)
				}
				lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
				return lastErr
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(6),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(3*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(100*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying HTTP request",
				"attempt", n+1,
				"url", req.URL.String(),
				"remaining_time", time.Until(deadline),
				"error", err)
		}),
		retry.RetryIf(func(err error) bool {
			if time.Now().After(deadline) {
				return false
			}
			return err != nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}

	return resp, nil
}

// EmployeeID resolves (and then remembers) the employee record behind the
// current credentials.
func (s *Service) EmployeeID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.employeeID != "" {
		return s.employeeID, nil
	}

	user, err := s.erp.LoggedInUser(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving signed-in user: %w", err)
	}

	rows, err := s.erp.ListWithFallback(ctx, erpnext.DoctypeEmployee, erpnext.ListOptions{
		Fields:  []string{"name", "employee_name", "user_id"},
		Filters: []erpnext.Filter{erpnext.Eq("user_id", user)},
		Limit:   1,
	})
	if err != nil {
		return "", fmt.Errorf("looking up employee for %s: %w", user, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no employee record linked to %s", user)
	}

	s.employeeID = rows[0].PickString("name")
	s.logger.Debug("resolved employee", "user", user, "employee", s.employeeID)
	return s.employeeID, nil
}

// erpDate formats a time the way Frappe date fields expect.
func erpDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// erpDatetime formats a time the way Frappe datetime fields expect.
func erpDatetime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// coordinateLabel renders a raw coordinate pair for the location field when
// no reverse-geocoded address is supplied.
func coordinateLabel(lat, lon float64) string {
	return strings.TrimSpace(fmt.Sprintf("%.5f,%.5f", lat, lon))
}
