package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, existed := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if existed {
				os.Setenv(k, old)
			}
		})
	}
}

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	c := Default()
	if c.PollTickSec != 1.5 {
		t.Errorf("PollTickSec default = %v, want 1.5", c.PollTickSec)
	}
	if c.BatchMax != 50 {
		t.Errorf("BatchMax default = %d, want 50", c.BatchMax)
	}
	if c.JoinIntervalSec != 180 {
		t.Errorf("JoinIntervalSec default = %d, want 180", c.JoinIntervalSec)
	}
	if c.SessRescanSec != 20 {
		t.Errorf("SessRescanSec default = %d, want 20", c.SessRescanSec)
	}
	if c.HealthcheckIntervalSec != 45 {
		t.Errorf("HealthcheckIntervalSec default = %d, want 45", c.HealthcheckIntervalSec)
	}
	if c.MediaMaxMB != 50 {
		t.Errorf("MediaMaxMB default = %d, want 50", c.MediaMaxMB)
	}
}

func TestLoadEnvOverridesWinOverConfigFile(t *testing.T) {
	clearEnv(t, "BATCH_MAX", "CHANMIRROR_CONFIG", "BIND_PORT")

	dir := t.TempDir()
	path := filepath.Join(dir, "chanmirror.json5")
	// JSON5 permits comments and bare keys; this also exercises that the
	// file layer is read before env overrides are applied.
	if err := os.WriteFile(path, []byte("{\n  // overridden by env below\n  BatchMax: 5,\n  BindPort: 9999,\n}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("CHANMIRROR_CONFIG", path)
	os.Setenv("BATCH_MAX", "77")

	c := Load()
	if c.BatchMax != 77 {
		t.Errorf("env var must win over config file: BatchMax = %d, want 77", c.BatchMax)
	}
	if c.BindPort != 9999 {
		t.Errorf("config file value should apply when no env override exists: BindPort = %d, want 9999", c.BindPort)
	}
}

func TestLoadMissingConfigFileIsNotAnError(t *testing.T) {
	clearEnv(t, "CHANMIRROR_CONFIG")
	os.Setenv("CHANMIRROR_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.json5"))

	c := Load()
	if c.PollTickSec != 1.5 {
		t.Errorf("missing config file must fall back to defaults, got PollTickSec=%v", c.PollTickSec)
	}
}

func TestBindAddr(t *testing.T) {
	c := &Config{BindHost: "0.0.0.0", BindPort: 8080}
	if got := c.BindAddr(); got != "0.0.0.0:8080" {
		t.Errorf("BindAddr() = %q, want 0.0.0.0:8080", got)
	}
}

func TestMediaMaxBytes(t *testing.T) {
	c := &Config{MediaMaxMB: 50}
	if got := c.MediaMaxBytes(); got != 50*1024*1024 {
		t.Errorf("MediaMaxBytes() = %d, want %d", got, 50*1024*1024)
	}
}
