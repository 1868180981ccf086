// Package httpcache keeps the last successful ERP responses on disk so
// screens render instantly from stale data while a fresh fetch runs.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

// Entry is one cached response body. Entries are overwritten by the next
// successful write and read unconditionally until they expire; there is no
// invalidation beyond the TTL.
type Entry struct {
	ExpiresAt time.Time
	Data      []byte
}

// Store is an otter-backed response store with optional gob persistence.
type Store struct {
	cache    *otter.Cache[string, Entry]
	logger   *slog.Logger
	path     string
	ttl      time.Duration
	saveMu   sync.Mutex
	stopSave context.CancelFunc
	saveWg   sync.WaitGroup
}

// New opens a disk-backed store under dir, loading whatever survived the
// previous run and saving periodically until Close.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s := newMemory(ttl, logger)
	s.path = filepath.Join(dir, "responses.gob")

	if err := s.load(); err != nil {
		logger.Warn("failed to load response cache", "error", err)
	}
	logger.Debug("response cache ready", "path", s.path, "entries", s.cache.EstimatedSize())

	saveCtx, cancel := context.WithCancel(ctx)
	s.stopSave = cancel
	s.saveWg.Add(1)
	go func() {
		defer s.saveWg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := s.save(); err != nil {
					logger.Error("periodic cache save failed", "error", err)
				}
			}
		}
	}()

	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory(ttl time.Duration, logger *slog.Logger) *Store {
	return newMemory(ttl, logger)
}

func newMemory(ttl time.Duration, logger *slog.Logger) *Store {
	cache := otter.Must(&otter.Options[string, Entry]{
		MaximumSize:      10_000,
		InitialCapacity:  256,
		ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
	})
	return &Store{cache: cache, logger: logger, ttl: ttl}
}

// key derives the cache key for one request shape. The body participates
// so distinct RPC payloads to the same endpoint do not collide.
func key(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) get(k string) ([]byte, bool) {
	entry, found := s.cache.GetIfPresent(k)
	if !found {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		s.cache.Invalidate(k)
		return nil, false
	}
	return entry.Data, true
}

func (s *Store) set(k string, data []byte) {
	s.cache.Set(k, Entry{Data: data, ExpiresAt: time.Now().Add(s.ttl)})
}

// flush drops every entry. Keys are request hashes and cannot be matched
// back to the doctype a write touched, so a write invalidates everything.
func (s *Store) flush() {
	s.cache.InvalidateAll()
}

func (s *Store) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			s.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	now := time.Now()
	for k, entry := range entries {
		if now.Before(entry.ExpiresAt) {
			s.cache.Set(k, entry)
		}
	}
	return nil
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	entries := make(map[string]Entry)
	now := time.Now()
	s.cache.All()(func(k string, entry Entry) bool {
		if now.Before(entry.ExpiresAt) {
			entries[k] = entry
		}
		return true
	})

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			s.logger.Debug("failed to remove temp cache file", "error", err)
		}
	}()

	if err := gob.NewEncoder(file).Encode(entries); err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// Close stops the periodic saver and flushes once more.
func (s *Store) Close() error {
	if s.stopSave != nil {
		s.stopSave()
	}
	s.saveWg.Wait()
	if err := s.save(); err != nil {
		s.logger.Error("final cache save failed", "error", err)
		return err
	}
	return nil
}

// Transport wraps an HTTP do-function with read-through caching. A failed
// fetch never evicts: a dead network still serves the last good answer
// until its TTL runs out.
type Transport struct {
	store  *Store
	do     func(context.Context, *http.Request) (*http.Response, error)
	logger *slog.Logger
}

// NewTransport builds the caching wrapper. A nil store disables caching.
func NewTransport(store *Store, do func(context.Context, *http.Request) (*http.Response, error), logger *slog.Logger) *Transport {
	return &Transport{store: store, do: do, logger: logger}
}

// Do answers cacheable requests from the store when possible, otherwise
// performs the request and stores a successful response. Only GETs are
// cacheable; document writes always hit the network, and a successful
// write flushes the store so the next list read refetches.
func (t *Transport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if t.store == nil {
		return t.do(ctx, req)
	}
	if req.Method != http.MethodGet {
		resp, err := t.do(ctx, req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			t.store.flush()
			t.logger.Debug("flushed response cache after write", "method", req.Method, "url", req.URL.Path)
		}
		return resp, err
	}

	var reqBody []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}
	k := key(req.Method, req.URL.String(), reqBody)

	if data, found := t.store.get(k); found {
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set("X-From-Cache", "true")
		return resp, nil
	}

	resp, err := t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		data, err := io.ReadAll(resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("failed to close response body", "error", closeErr)
		}
		if err != nil {
			return nil, err
		}
		t.store.set(k, data)
		resp.Body = io.NopCloser(bytes.NewReader(data))
	}
	return resp, nil
}
