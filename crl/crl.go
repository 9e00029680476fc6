// Package crl models one Certificate Revocation List: its current DER
// bytes, when they were last downloaded, and (for CRLs fetched from a
// URL) how to refresh them. Refresh never checks the CRL's own
// signature -- the verifier re-checks at use time against whichever CSCA
// ends up the candidate -- so a refresh can never fail a verification
// that's already in flight against the previous data.
package crl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jmhodges/clock"
)

// PersistentStore durably records a CRL's bytes and download time, keyed
// by URL, so a process restart can resume from the last good copy rather
// than going without a CRL until the next refresh tick.
type PersistentStore interface {
	SaveCRL(ctx context.Context, url string, data []byte, downloaded time.Time) error
	LoadCRL(ctx context.Context, url string) (data []byte, downloaded time.Time, ok bool, err error)
}

// CRL holds one revocation list's current bytes. A zero-value URL marks a
// static CRL that Refresh never touches.
type CRL struct {
	URL string

	mu             sync.RWMutex
	data           []byte
	lastDownloaded time.Time

	store      PersistentStore
	httpClient *http.Client
	clk        clock.Clock
}

// NewStatic returns a CRL that never refreshes, for a host that supplies
// a fixed CRL blob out of band.
func NewStatic(data []byte) *CRL {
	return &CRL{data: data}
}

// NewUpdating returns a CRL that refreshes from url. If store already
// holds data for url, that data is loaded immediately; otherwise seed (if
// non-nil) is used until the first successful refresh.
func NewUpdating(ctx context.Context, url string, seed []byte, store PersistentStore, httpClient *http.Client, clk clock.Clock) (*CRL, error) {
	c := &CRL{URL: url, data: seed, store: store, httpClient: httpClient, clk: clk}
	if store != nil {
		data, downloaded, ok, err := store.LoadCRL(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("crl: loading persisted state for %s: %w", url, err)
		}
		if ok {
			c.data = data
			c.lastDownloaded = downloaded
		}
	}
	return c, nil
}

// Data returns the CRL's current DER bytes. Safe to call while a refresh
// is in progress: it observes either the prior data or the new data in
// full, never a partial update.
func (c *CRL) Data() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// LastDownloaded returns the time of the most recent successful refresh,
// or the zero Time if none has ever succeeded.
func (c *CRL) LastDownloaded() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastDownloaded
}

// IsOverdue reports whether this CRL has a URL and either has never been
// downloaded or was last downloaded more than overdueAfter ago.
func (c *CRL) IsOverdue(now time.Time, overdueAfter time.Duration) bool {
	if c.URL == "" {
		return false
	}
	last := c.LastDownloaded()
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= overdueAfter
}

// Refresh fetches the CRL over HTTPS and, on success, atomically replaces
// Data and LastDownloaded and persists both to the store. On failure, the
// prior state is left untouched and the error is returned.
func (c *CRL) Refresh(ctx context.Context) error {
	if c.URL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("crl: building request for %s: %w", c.URL, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crl: fetching %s: %w", c.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("crl: fetching %s: unexpected status %s", c.URL, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("crl: reading body from %s: %w", c.URL, err)
	}

	now := c.clk.Now()
	c.mu.Lock()
	c.data = data
	c.lastDownloaded = now
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveCRL(ctx, c.URL, data, now); err != nil {
			return fmt.Errorf("crl: persisting %s: %w", c.URL, err)
		}
	}
	return nil
}
