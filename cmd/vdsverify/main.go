// vdsverify is a one-shot CLI host: it loads a trust store from a JSON
// config file, decodes a single VDS-NC JSON document, verifies it, and
// reports the outcome on stdout/stderr with a process exit code -- the
// smallest possible host for the verification core, in the spirit of the
// teacher's "Action func(c cmd.Config)" single-purpose commands
// (cmd/admin-revoker/main.go) rather than its long-running RPC servers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jmhodges/clock"

	"github.com/letsencrypt-icao/vdsnc/berrors"
	"github.com/letsencrypt-icao/vdsnc/cmd/internal/trustconfig"
	"github.com/letsencrypt-icao/vdsnc/metrics"
	"github.com/letsencrypt-icao/vdsnc/trust"
	"github.com/letsencrypt-icao/vdsnc/vconfig"
	"github.com/letsencrypt-icao/vdsnc/vds"
	"github.com/letsencrypt-icao/vdsnc/verifier"
	"github.com/letsencrypt-icao/vdsnc/vlog"
)

type config struct {
	TrustStore          trustconfig.Config `json:"trustStore"`
	CheckValidityWindow bool               `json:"checkValidityWindow"`
}

func main() {
	configPath := flag.String("config", "", "path to the JSON configuration file")
	vdsPath := flag.String("vds", "", "path to the VDS-NC JSON document to verify")
	flag.Parse()

	if *configPath == "" || *vdsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vdsverify -config config.json -vds document.json")
		os.Exit(2)
	}

	var c config
	vconfig.FailOnError(vconfig.Load(*configPath, &c), "Couldn't parse config file")

	jsonText, err := os.ReadFile(*vdsPath)
	vconfig.FailOnError(err, "Couldn't read VDS document")

	ctx := context.Background()
	store, err := trustconfig.BuildStore(ctx, c.TrustStore, clock.Default())
	vconfig.FailOnError(err, "Couldn't build trust store")

	results := store.RefreshNow(ctx)
	trust.ReportRefreshMetrics(metrics.NewNoopScope(), results)

	v, err := vds.Decode(jsonText)
	if err != nil {
		reportAndExit(err)
	}

	vf := verifier.NewWithOptions(metrics.NewNoopScope(), vlog.Default(), clock.Default(), verifier.Options{
		CheckValidityWindow: c.CheckValidityWindow,
	})
	if err := vf.Verify(ctx, v, store); err != nil {
		reportAndExit(err)
	}

	fmt.Println("VALID")
}

func reportAndExit(err error) {
	if kind, ok := berrors.KindOf(err); ok {
		fmt.Fprintf(os.Stderr, "INVALID: %s: %s\n", kind, err)
	} else {
		fmt.Fprintf(os.Stderr, "INVALID: %s\n", err)
	}
	os.Exit(1)
}
