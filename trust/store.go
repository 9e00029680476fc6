package trust

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"golang.org/x/sync/errgroup"

	"github.com/letsencrypt-icao/vdsnc/metrics"
	"github.com/letsencrypt-icao/vdsnc/vlog"
)

// DefaultRefreshPeriod and DefaultOverdueAfter are spec.md §6's defaults:
// one day between refresh ticks, ten days before a CRL is overdue.
const (
	DefaultRefreshPeriod = 86_400 * time.Second
	DefaultOverdueAfter  = 864_000 * time.Second
)

// Config holds the tunables spec.md §6 lists for a TrustStore.
type Config struct {
	RefreshPeriod time.Duration
	OverdueAfter  time.Duration
	HTTPTimeout   time.Duration
}

// Observer is called exactly once per refresh batch, with one entry per
// member CRL that has a URL, reporting whether that CRL's refresh
// succeeded.
type Observer func(results map[string]bool)

// TrustStore holds the ordered list of CSCACertificates a verification
// may select a candidate from, plus the machinery to keep their CRLs
// current.
type TrustStore struct {
	cfg Config
	clk clock.Clock
	log vlog.Logger

	mu       sync.RWMutex
	members  []*CSCACertificate
	observer Observer

	lastRefreshHadFailure bool

	auditLog AuditLog

	tickerStop chan struct{}
	tickerDone sync.WaitGroup
}

// AuditLog optionally records each verification outcome; see SQLAuditLog.
type AuditLog interface {
	Record(ctx context.Context, cscaSHA256, bscSerialHex, outcome string, at time.Time) error
}

// New returns an empty TrustStore. Use Add to populate it before serving
// any verification.
func New(cfg Config, clk clock.Clock, log vlog.Logger) *TrustStore {
	if cfg.RefreshPeriod == 0 {
		cfg.RefreshPeriod = DefaultRefreshPeriod
	}
	if cfg.OverdueAfter == 0 {
		cfg.OverdueAfter = DefaultOverdueAfter
	}
	return &TrustStore{cfg: cfg, clk: clk, log: log}
}

// Add appends a CSCA to the store's ordered member list.
func (t *TrustStore) Add(c *CSCACertificate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.members = append(t.members, c)
}

// Members returns a snapshot of the store's current CSCAs, in the order
// they were added -- the order the verifier's candidate selection walks.
func (t *TrustStore) Members() []*CSCACertificate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*CSCACertificate, len(t.members))
	copy(out, t.members)
	return out
}

// SetDelegate installs the observer called once per completed refresh
// batch.
func (t *TrustStore) SetDelegate(obs Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = obs
}

// SetAuditLog installs an optional per-verification audit log.
func (t *TrustStore) SetAuditLog(a AuditLog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.auditLog = a
}

// AuditLog returns the installed audit log, or nil if none is set.
func (t *TrustStore) AuditLog() AuditLog {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.auditLog
}

// SetOverdueAfter changes the overdue threshold at runtime.
func (t *TrustStore) SetOverdueAfter(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.OverdueAfter = d
}

// IsOverdue reports whether any member CRL is overdue.
func (t *TrustStore) IsOverdue() bool {
	now := t.clk.Now()
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.members {
		if m.CRL != nil && m.CRL.IsOverdue(now, t.cfg.OverdueAfter) {
			return true
		}
	}
	return false
}

// RefreshNow issues a refresh for every member CRL that has a URL,
// concurrently, and returns once every refresh has completed (success or
// failure), invoking the installed observer exactly once with the
// per-URL results.
func (t *TrustStore) RefreshNow(ctx context.Context) map[string]bool {
	members := t.Members()

	results := make(map[string]bool)
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range members {
		m := m
		if m.CRL == nil || m.CRL.URL == "" {
			continue
		}
		g.Go(func() error {
			err := m.CRL.Refresh(gctx)
			resultsMu.Lock()
			results[m.CRL.URL] = err == nil
			resultsMu.Unlock()
			if err != nil {
				t.log.Warn(fmt.Sprintf("crl refresh failed for %s: %v", m.CRL.URL, err))
			}
			return nil // individual failures are reported, not fatal to the batch
		})
	}
	// errgroup's error is always nil here since refresh failures are
	// captured per-URL rather than aborting the group; Wait only blocks
	// until every goroutine has returned.
	_ = g.Wait()

	hadFailure := false
	for _, ok := range results {
		if !ok {
			hadFailure = true
			break
		}
	}

	t.mu.Lock()
	t.lastRefreshHadFailure = hadFailure
	observer := t.observer
	t.mu.Unlock()

	if observer != nil {
		observer(results)
	}
	return results
}

// StartAutoRefresh arms a periodic ticker that calls RefreshNow on every
// tick until StopAutoRefresh is called.
func (t *TrustStore) StartAutoRefresh(period time.Duration) {
	if period <= 0 {
		period = t.cfg.RefreshPeriod
	}
	t.tickerStop = make(chan struct{})
	t.tickerDone.Add(1)
	go func() {
		defer t.tickerDone.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.RefreshNow(context.Background())
			case <-t.tickerStop:
				return
			}
		}
	}()
}

// StopAutoRefresh halts the periodic ticker started by StartAutoRefresh
// and waits for any in-flight tick to finish.
func (t *TrustStore) StopAutoRefresh() {
	if t.tickerStop == nil {
		return
	}
	close(t.tickerStop)
	t.tickerDone.Wait()
	t.tickerStop = nil
}

// NotifyReachable fires an immediate refresh if the most recent refresh
// batch had at least one failure, the "network reachable again"
// transition spec.md §4.8 describes.
func (t *TrustStore) NotifyReachable() {
	t.mu.RLock()
	hadFailure := t.lastRefreshHadFailure
	t.mu.RUnlock()
	if hadFailure {
		t.RefreshNow(context.Background())
	}
}

// ReportRefreshMetrics reports refresh outcomes to a metrics.Scope, used by
// cmd/vdstrustd and cmd/vdsverify; kept here rather than called implicitly so a host that
// doesn't want metrics never has to provide a Scope.
func ReportRefreshMetrics(scope metrics.Scope, results map[string]bool) {
	for url, ok := range results {
		kind := "success"
		if !ok {
			kind = "failure"
		}
		scope.IncLabeled("refresh_total", 1, map[string]string{"url": url, "result": kind})
	}
}
