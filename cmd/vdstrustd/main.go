// vdstrustd is the long-running host: it owns a trust store's periodic
// CRL refresh cycle, exposing its health and metrics over HTTP so it can
// run as a sidecar that cmd/vdsverify (or an embedding host) shares a
// CRL persistence backend with, grounded on the teacher's
// cmd/boulder-wfe2's shape (a JSON config, StatsAndLogging, a
// debug/metrics listener) minus the RPC-service machinery this module
// has no use for.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/letsencrypt-icao/vdsnc/cmd/internal/trustconfig"
	"github.com/letsencrypt-icao/vdsnc/metrics"
	"github.com/letsencrypt-icao/vdsnc/trust"
	"github.com/letsencrypt-icao/vdsnc/vconfig"
	"github.com/letsencrypt-icao/vdsnc/vlog"
)

type config struct {
	TrustStore          trustconfig.Config `json:"trustStore"`
	CheckValidityWindow bool               `json:"checkValidityWindow"`

	ListenAddress string `json:"listenAddress"`
	DebugAddress  string `json:"debugAddress"`

	OTLPEndpoint string `json:"otlpEndpoint"`

	Syslog vconfig.SyslogConfig `json:"syslog"`
}

func main() {
	configPath := flag.String("config", "", "path to the JSON configuration file")
	flag.Parse()
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vdstrustd -config config.json")
		os.Exit(2)
	}

	var c config
	vconfig.FailOnError(vconfig.Load(*configPath, &c), "Couldn't parse config file")

	level := zerolog.InfoLevel
	if c.Syslog.StdoutLevel < 0 {
		level = zerolog.DebugLevel
	}
	log := vlog.New(os.Stderr, level)
	vlog.Set(log)

	scope := metrics.NewPromScope(prometheus.DefaultRegisterer, "vdstrustd")

	ctx := context.Background()
	if c.OTLPEndpoint != "" {
		shutdown, err := installTracing(ctx, c.OTLPEndpoint)
		vconfig.FailOnError(err, "Couldn't install OpenTelemetry tracing")
		defer shutdown(ctx)
	}

	store, err := trustconfig.BuildStore(ctx, c.TrustStore, clock.Default())
	vconfig.FailOnError(err, "Couldn't build trust store")

	store.SetDelegate(func(results map[string]bool) {
		trust.ReportRefreshMetrics(scope, results)
		for url, ok := range results {
			if !ok {
				log.Warn(fmt.Sprintf("crl refresh failed for %s", url))
			}
		}
	})
	store.RefreshNow(ctx)
	store.StartAutoRefresh(c.TrustStore.RefreshPeriod.Duration)
	defer store.StopAutoRefresh()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if store.IsOverdue() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "trust store overdue")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	go serveDebug(c.DebugAddress, log)

	srv := &http.Server{
		Addr:     c.ListenAddress,
		Handler:  mux,
		ErrorLog: log.Stdlib(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.AuditErr(fmt.Sprintf("vdstrustd: ListenAndServe: %v", err))
			os.Exit(1)
		}
	}()

	waitForShutdown(srv, log)
}

func serveDebug(addr string, log vlog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.AuditErr(fmt.Sprintf("vdstrustd: debug server: %v", err))
	}
}

func installTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("vdstrustd: building otlp exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func waitForShutdown(srv *http.Server, log vlog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("vdstrustd: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
