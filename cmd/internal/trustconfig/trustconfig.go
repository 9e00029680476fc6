// Package trustconfig builds a *trust.TrustStore from the JSON config
// block shared by cmd/vdsverify and cmd/vdstrustd, the same "one JSON
// file" shape the teacher's cmd.Config sub-blocks (SAConfig, CAConfig,
// ...) use. The only defaults applied here are the CRL-fetch HTTP timeout
// (10s) and the DNS lookup timeout (5s) when those fields are unset.
package trustconfig

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmhodges/clock"

	"github.com/letsencrypt-icao/vdsnc/cmd/internal/certload"
	"github.com/letsencrypt-icao/vdsnc/crl"
	"github.com/letsencrypt-icao/vdsnc/trust"
	"github.com/letsencrypt-icao/vdsnc/vconfig"
	"github.com/letsencrypt-icao/vdsnc/vlog"
)

// CSCAEntry names one trust anchor: where its certificate lives on disk,
// the SHA-256 it must hash to, and (optionally) where its CRL is
// published. CRLURL is used when present; otherwise, if CRLDNSName is
// set, the CRL URL is resolved as a DNS TXT record fallback before the
// CRL itself is fetched over HTTP.
type CSCAEntry struct {
	CertPath  string `json:"certPath"`
	SHA256Hex string `json:"sha256Hex"`
	CRLURL    string `json:"crlUrl"`
	SeedPath  string `json:"crlSeedPath"`

	CRLDNSName string `json:"crlDnsName"`
}

// DNSConfig names the resolver used to look up CRLDNSName fallbacks.
type DNSConfig struct {
	Servers []string         `json:"servers"`
	Timeout vconfig.Duration `json:"timeout"`
}

// RedisConfig names a go-redis/redis/v8 endpoint used as the
// crl.PersistentStore backing CRL downloads.
type RedisConfig struct {
	Addr     string              `json:"addr"`
	Password vconfig.ConfigSecret `json:"password"`
	DB       int                 `json:"db"`
}

// SQLAuditConfig names a MySQL DSN used for trust.SQLAuditLog.
type SQLAuditConfig struct {
	DSN vconfig.ConfigSecret `json:"dsn"`
}

// Config is the JSON shape both hosts embed as their TrustStore block.
type Config struct {
	CSCAs []CSCAEntry `json:"cscas"`

	RefreshPeriod vconfig.Duration `json:"refreshPeriod"`
	OverdueAfter  vconfig.Duration `json:"overdueAfter"`
	HTTPTimeout   vconfig.Duration `json:"httpTimeout"`

	Redis     *RedisConfig    `json:"redis"`
	SQLAudit  *SQLAuditConfig `json:"sqlAudit"`
	DNS       *DNSConfig      `json:"dns"`
}

// BuildStore constructs a *trust.TrustStore from cfg: one CSCACertificate
// per entry, each with an updating or static CRL depending on whether a
// crlUrl was given (falling back to a crlDnsName TXT lookup when it
// wasn't), and the optional Redis persistence / SQL audit log backends
// wired in if configured.
func BuildStore(ctx context.Context, cfg Config, clk clock.Clock) (*trust.TrustStore, error) {
	store := trust.New(trust.Config{
		RefreshPeriod: cfg.RefreshPeriod.Duration,
		OverdueAfter:  cfg.OverdueAfter.Duration,
		HTTPTimeout:   cfg.HTTPTimeout.Duration,
	}, clk, vlog.Default())

	var persist crl.PersistentStore
	if cfg.Redis != nil {
		password, err := cfg.Redis.Password.Get()
		if err != nil {
			return nil, fmt.Errorf("trustconfig: redis password: %w", err)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: password,
			DB:       cfg.Redis.DB,
		})
		persist = crl.NewRedisStore(client)
	}

	httpTimeout := cfg.HTTPTimeout.Duration
	if httpTimeout == 0 {
		httpTimeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: httpTimeout}

	var dnsResolver *trust.DistributionPointResolver
	if cfg.DNS != nil {
		dnsTimeout := cfg.DNS.Timeout.Duration
		if dnsTimeout == 0 {
			dnsTimeout = 5 * time.Second
		}
		dnsResolver = trust.NewDistributionPointResolver(dnsTimeout, cfg.DNS.Servers)
	}

	for _, entry := range cfg.CSCAs {
		der, err := certload.CertificateDER(entry.CertPath)
		if err != nil {
			return nil, fmt.Errorf("trustconfig: loading CSCA %q: %w", entry.CertPath, err)
		}

		crlURL := entry.CRLURL
		if crlURL == "" && entry.CRLDNSName != "" {
			if dnsResolver == nil {
				return nil, fmt.Errorf("trustconfig: CSCA %q names crlDnsName %q but no dns resolver is configured", entry.CertPath, entry.CRLDNSName)
			}
			crlURL, err = dnsResolver.ResolveDistributionPoint(entry.CRLDNSName)
			if err != nil {
				return nil, fmt.Errorf("trustconfig: resolving CRL distribution point for %q: %w", entry.CertPath, err)
			}
		}

		var crlObj *crl.CRL
		switch {
		case crlURL != "":
			var seed []byte
			if entry.SeedPath != "" {
				seed, err = certload.CRLDER(entry.SeedPath)
				if err != nil {
					return nil, fmt.Errorf("trustconfig: loading CRL seed %q: %w", entry.SeedPath, err)
				}
			}
			crlObj, err = crl.NewUpdating(ctx, crlURL, seed, persist, httpClient, clk)
			if err != nil {
				return nil, fmt.Errorf("trustconfig: constructing updating CRL for %q: %w", entry.CertPath, err)
			}
		case entry.SeedPath != "":
			seed, err := certload.CRLDER(entry.SeedPath)
			if err != nil {
				return nil, fmt.Errorf("trustconfig: loading static CRL %q: %w", entry.SeedPath, err)
			}
			crlObj = crl.NewStatic(seed)
		}

		csca, err := trust.NewCSCACertificate(der, entry.SHA256Hex, crlObj)
		if err != nil {
			return nil, fmt.Errorf("trustconfig: parsing CSCA %q: %w", entry.CertPath, err)
		}
		store.Add(csca)
	}

	if cfg.SQLAudit != nil {
		dsn, err := cfg.SQLAudit.DSN.Get()
		if err != nil {
			return nil, fmt.Errorf("trustconfig: sql audit dsn: %w", err)
		}
		auditLog, err := trust.NewSQLAuditLog(dsn)
		if err != nil {
			return nil, fmt.Errorf("trustconfig: opening audit log: %w", err)
		}
		store.SetAuditLog(auditLog)
	}

	return store, nil
}
