package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clipstashd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadDaemon(t *testing.T, body string) (*Daemon, error) {
	t.Helper()
	v := viper.New()
	SetDaemonDefaults(v)
	if err := Read(v, writeFile(t, body), DaemonConfigName); err != nil {
		t.Fatalf("Read: %v", err)
	}
	return LoadDaemon(v)
}

func TestDaemonDefaults(t *testing.T) {
	d, err := loadDaemon(t, "")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Daemonize || d.MaxHistory != 50 || d.HistoryDriver != "file" {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if !d.Monitor.LoadCurrent || !d.Monitor.EnableClipboard || !d.Monitor.EnablePrimary {
		t.Fatalf("monitor defaults: %+v", d.Monitor)
	}
	if d.Monitor.PollInterval != 250*time.Millisecond || d.Monitor.IgnoreWindow != time.Second {
		t.Fatalf("monitor timing defaults: %+v", d.Monitor)
	}
	if d.GRPC.Addr() != "127.0.0.1:45045" || !d.GRPC.HTTP {
		t.Fatalf("grpc defaults: %+v", d.GRPC)
	}
}

func TestDaemonFileValues(t *testing.T) {
	d, err := loadDaemon(t, `
daemonize = false
max_history = 7
history_driver = "sqlite"
log_level = "debug"

[monitor]
enable_primary = false
filter_min_size = 3
poll_interval = "100ms"

[grpc]
host = "::1"
port = 5000
http = false
`)
	if err != nil {
		t.Fatal(err)
	}
	if d.Daemonize || d.MaxHistory != 7 || d.HistoryDriver != "sqlite" || d.LogLevel != "debug" {
		t.Fatalf("top level: %+v", d)
	}
	if d.Monitor.EnablePrimary || d.Monitor.FilterMinSize != 3 || d.Monitor.PollInterval != 100*time.Millisecond {
		t.Fatalf("monitor: %+v", d.Monitor)
	}
	if d.GRPC.Addr() != "[::1]:5000" || d.GRPC.HTTP {
		t.Fatalf("grpc: %+v", d.GRPC)
	}
}

func TestZeroMaxHistoryMeansDefault(t *testing.T) {
	d, err := loadDaemon(t, "max_history = 0\n")
	if err != nil {
		t.Fatal(err)
	}
	if d.MaxHistory != DefaultMaxHistory {
		t.Fatalf("MaxHistory = %d", d.MaxHistory)
	}
}

func TestDaemonRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"negative history":  "max_history = -1\n",
		"unknown driver":    "history_driver = \"bolt\"\n",
		"unknown level":     "log_level = \"loud\"\n",
		"unknown format":    "log_format = \"xml\"\n",
		"unknown backend":   "[monitor]\nbackend = \"carrier-pigeon\"\n",
		"zero poll":         "[monitor]\npoll_interval = \"0s\"\n",
		"negative filter":   "[monitor]\nfilter_min_size = -2\n",
		"public host":       "[grpc]\nhost = \"0.0.0.0\"\n",
		"hostname":          "[grpc]\nhost = \"localhost\"\n",
		"port out of range": "[grpc]\nport = 70000\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := loadDaemon(t, body); !errors.Is(err, ErrInvalid) {
				t.Fatalf("LoadDaemon() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("CLIPSTASH_MAX_HISTORY", "9")
	t.Setenv("CLIPSTASH_MONITOR_ENABLE_PRIMARY", "false")
	d, err := loadDaemon(t, "max_history = 3\n")
	if err != nil {
		t.Fatal(err)
	}
	if d.MaxHistory != 9 || d.Monitor.EnablePrimary {
		t.Fatalf("env not applied: max_history=%d enable_primary=%v", d.MaxHistory, d.Monitor.EnablePrimary)
	}
}

func TestReadExplicitMissingFile(t *testing.T) {
	v := viper.New()
	if err := Read(v, filepath.Join(t.TempDir(), "nope.toml"), DaemonConfigName); err == nil {
		t.Fatal("Read of a missing explicit file succeeded")
	}
}

func TestReadMalformedFile(t *testing.T) {
	v := viper.New()
	if err := Read(v, writeFile(t, "max_history = [\n"), DaemonConfigName); err == nil {
		t.Fatal("Read of malformed TOML succeeded")
	}
}

func TestMenuDefaultsAndFinder(t *testing.T) {
	v := viper.New()
	SetMenuDefaults(v)
	m, err := LoadMenu(v)
	if err != nil {
		t.Fatal(err)
	}
	if m.Finder != "rofi" || m.Rofi.MenuLength != 30 || m.Rofi.LineLength != 100 {
		t.Fatalf("menu defaults: %+v", m)
	}
	if m.CustomFinder.Program != "fzf" {
		t.Fatalf("custom finder default = %q", m.CustomFinder.Program)
	}
	if tn := m.Tuning(FinderSkim); tn.MenuLength != 0 || tn.LineLength != 100 {
		t.Fatalf("skim tuning = %+v", tn)
	}

	v.Set("finder", "vim")
	if _, err := LoadMenu(v); !errors.Is(err, ErrInvalid) {
		t.Fatalf("LoadMenu(finder=vim) = %v", err)
	}
}

func TestParseFinder(t *testing.T) {
	for in, want := range map[string]Finder{"": FinderRofi, "Dmenu": FinderDmenu, " builtin ": FinderBuiltin, "custom": FinderCustom} {
		got, err := ParseFinder(in)
		if err != nil || got != want {
			t.Errorf("ParseFinder(%q) = %q, %v", in, got, err)
		}
	}
}
