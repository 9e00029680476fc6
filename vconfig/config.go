// Package vconfig provides the shared JSON configuration-loading
// machinery used by cmd/vdsverify and cmd/vdstrustd, in the teacher's
// no-defaults, single-JSON-file style (cmd/config.go, cmd/shell.go).
package vconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// SyslogConfig controls where audit log output goes, mirroring the
// teacher's SyslogConfig block in cmd/config.go.
type SyslogConfig struct {
	StdoutLevel int
	SyslogLevel int
}

// ConfigSecret holds a value that may be given inline in the config file
// or loaded from a separate file on disk -- the teacher's pattern for
// SA.DBConnect in cmd/config.go, used here for Redis/SQL DSNs so secrets
// need not be committed alongside the rest of the config.
type ConfigSecret struct {
	Value string
	File  string
}

// Get returns the secret's value, reading File if Value is empty.
func (c ConfigSecret) Get() (string, error) {
	if c.Value != "" {
		return c.Value, nil
	}
	if c.File == "" {
		return "", fmt.Errorf("vconfig: neither Value nor File set")
	}
	b, err := os.ReadFile(c.File)
	if err != nil {
		return "", fmt.Errorf("vconfig: reading secret file %q: %w", c.File, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// UnmarshalJSON allows ConfigSecret to be given as a bare JSON string
// (the inline case) or as an object ({"file": "..."}).
func (c *ConfigSecret) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Value = s
		return nil
	}
	var obj struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	c.File = obj.File
	return nil
}

// Duration wraps time.Duration for JSON config fields expressed as
// strings ("24h", "10m"), matching the teacher's string-typed duration
// fields (CA.Config.LifespanOCSP, Expiry) parsed with time.ParseDuration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("vconfig: invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// Load reads the JSON file at path and unmarshals it into out, matching
// cmd/shell.go's NewAppShell config-loading step.
func Load(path string, out interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vconfig: reading %q: %w", path, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("vconfig: parsing %q: %w", path, err)
	}
	return nil
}

// FailOnError mirrors the teacher's cmd.FailOnError: a startup-only
// convenience for fatal configuration errors, never used once a server
// loop or verification call is in progress.
func FailOnError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}
