package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"serialmon/pkg/config"
	"serialmon/pkg/link"
	"serialmon/pkg/serial"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func tempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()

	if !strings.HasPrefix(root.Use, "serialmon") {
		t.Errorf("root.Use = %s", root.Use)
	}
	if !root.SilenceErrors || !root.SilenceUsage {
		t.Error("root command should leave error reporting to main")
	}

	for _, name := range []string{"connect", "list", "config"} {
		sub, _, err := root.Find([]string{name})
		if err != nil || sub == root {
			t.Errorf("subcommand %q not found", name)
		}
	}
	if sub, _, err := root.Find([]string{"open"}); err != nil || !strings.HasPrefix(sub.Use, "connect") {
		t.Error("open should alias connect")
	}

	for _, flag := range []string{"baud", "data", "stop", "parity", "timeout", "scrollback", "profile", "log-file", "log-level", "config"} {
		if root.Flags().Lookup(flag) == nil && root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("flag --%s missing", flag)
		}
	}
}

func TestFlagDefaults(t *testing.T) {
	root := NewRootCmd()
	tests := map[string]string{
		"baud":       "9600",
		"data":       "8",
		"stop":       "2",
		"parity":     "none",
		"timeout":    "0s",
		"scrollback": "1000",
	}
	for name, want := range tests {
		if got := root.Flags().Lookup(name).DefValue; got != want {
			t.Errorf("--%s default = %s, want %s", name, got, want)
		}
	}
}

func parsedFlags(t *testing.T, args ...string) (*cobra.Command, *sessionFlags) {
	t.Helper()
	var f sessionFlags
	c := &cobra.Command{Use: "test"}
	f.register(c.Flags())
	if err := c.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	return c, &f
}

func TestResolveConfigLayers(t *testing.T) {
	path := tempConfig(t, "serial:\n  baud_rate: 19200\n  stop_bits: 1\n")

	tests := []struct {
		name   string
		args   []string
		target string
		check  func(t *testing.T, cfg config.Config)
	}{
		{
			name: "file values",
			check: func(t *testing.T, cfg config.Config) {
				if cfg.Serial.BaudRate != 19200 || cfg.Serial.StopBits != 1 || cfg.Serial.Port != "" {
					t.Errorf("serial = %+v", cfg.Serial)
				}
			},
		},
		{
			name:   "target is a port",
			target: "COM_FAKE",
			check: func(t *testing.T, cfg config.Config) {
				if cfg.Serial.Port != "COM_FAKE" {
					t.Errorf("port = %q", cfg.Serial.Port)
				}
			},
		},
		{
			name: "set flags win, unset flags do not",
			args: []string{"-b", "115200", "--parity", "even", "-t", "250ms", "--scrollback", "50"},
			check: func(t *testing.T, cfg config.Config) {
				if cfg.Serial.BaudRate != 115200 || cfg.Serial.Parity != "even" {
					t.Errorf("serial = %+v", cfg.Serial)
				}
				if cfg.Serial.StopBits != 1 {
					t.Errorf("unset --stop overrode the file: %d", cfg.Serial.StopBits)
				}
				if cfg.Serial.Timeout != 250*time.Millisecond || cfg.Scrollback.Lines != 50 {
					t.Errorf("timeout %v scrollback %d", cfg.Serial.Timeout, cfg.Scrollback.Lines)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := parsedFlags(t, tt.args...)
			cfg, err := resolveConfig(c, path, f, tt.target)
			if err != nil {
				t.Fatalf("resolveConfig: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestResolveConfigProfile(t *testing.T) {
	path := tempConfig(t, "")
	store, err := config.NewProfileStore(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	saved := serial.Config{Port: "/dev/ttyACM3", BaudRate: 57600, DataBits: 7, StopBits: 1, Parity: "odd"}
	if err := store.Save("bench", saved, ""); err != nil {
		t.Fatal(err)
	}

	c, f := parsedFlags(t, "-b", "38400")
	cfg, err := resolveConfig(c, path, f, "bench")
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	want := saved
	want.BaudRate = 38400
	if cfg.Serial != want {
		t.Errorf("serial = %+v, want %+v", cfg.Serial, want)
	}

	c, f = parsedFlags(t, "--profile", "missing")
	if _, err := resolveConfig(c, path, f, ""); err == nil {
		t.Error("expected error for missing profile")
	}
}

func TestResolveConfigRejectsInvalid(t *testing.T) {
	path := tempConfig(t, "")
	c, f := parsedFlags(t, "--parity", "sideways")
	if _, err := resolveConfig(c, path, f, ""); err == nil {
		t.Error("expected error for unknown parity")
	}
}

func TestPrintPorts(t *testing.T) {
	ports := []serial.PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R", SerialNumber: "A1"},
	}

	tests := []struct {
		format  string
		details bool
		want    []string
	}{
		{"table", false, []string{"Found 2 serial port(s):", "  /dev/ttyUSB0\n"}},
		{"table", true, []string{"0403:6001", "FT232R", "A1"}},
		{"csv", false, []string{"port\n/dev/ttyS0\n/dev/ttyUSB0\n"}},
		{"csv", true, []string{"port,is_usb,vid,pid,product,serial_number\n", "/dev/ttyUSB0,true,0403,6001,FT232R,A1\n"}},
		{"json", false, []string{"[\n  \"/dev/ttyS0\",\n  \"/dev/ttyUSB0\"\n]\n"}},
		{"json", true, []string{`"vid": "0403"`, `"is_usb": true`}},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		if err := printPorts(&buf, ports, tt.format, tt.details); err != nil {
			t.Fatalf("%s details=%v: %v", tt.format, tt.details, err)
		}
		for _, want := range tt.want {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("%s details=%v output missing %q:\n%s", tt.format, tt.details, want, buf.String())
			}
		}
	}

	if err := printPorts(&bytes.Buffer{}, ports, "xml", false); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestListCommand(t *testing.T) {
	origList, origDetailed := listPorts, detailedPorts
	t.Cleanup(func() { listPorts, detailedPorts = origList, origDetailed })

	listPorts = func() ([]string, error) { return []string{"COM3"}, nil }
	detailedPorts = func() ([]serial.PortInfo, error) { return nil, errors.New("enumeration failed") }

	out, err := execute(t, "list", "--format", "csv")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "port\nCOM3\n" {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "list", "--details"); err == nil {
		t.Error("expected enumeration error")
	}

	listPorts = func() ([]string, error) { return nil, nil }
	out, err = execute(t, "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "No serial ports found.") {
		t.Errorf("output = %q", out)
	}
}

func TestExplainOpenError(t *testing.T) {
	orig := portAvailable
	t.Cleanup(func() { portAvailable = orig })

	var queried []string
	listed := map[string]bool{"/dev/ttyUSB0": true}
	portAvailable = func(name string) bool {
		queried = append(queried, name)
		return listed[name]
	}

	openErr := &link.Error{Kind: link.KindExplicitOpen, Port: "COM_FAKE", Cause: errors.New("no such file")}
	tests := []struct {
		name     string
		err      error
		port     string
		wantHint bool
		queries  int
	}{
		{"success", nil, "COM_FAKE", false, 0},
		{"discovery", &link.Error{Kind: link.KindDiscovery, Cause: link.ErrNoDevice}, "", false, 0},
		{"missing port", openErr, "COM_FAKE", true, 1},
		{"listed port", openErr, "/dev/ttyUSB0", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queried = nil
			got := explainOpenError(tt.err, tt.port)
			if !errors.Is(got, tt.err) {
				t.Fatalf("explainOpenError lost the cause: %v", got)
			}
			hinted := got != nil && strings.Contains(got.Error(), "serialmon list")
			if hinted != tt.wantHint {
				t.Errorf("hint = %v, want %v (%v)", hinted, tt.wantHint, got)
			}
			if len(queried) != tt.queries {
				t.Errorf("port list read %d times, want %d", len(queried), tt.queries)
			}
		})
	}
	if !link.Fatal(explainOpenError(openErr, "COM_FAKE")) {
		t.Error("hinted error should still be an explicit open failure")
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("init output = %q", out)
	}
	if _, err := execute(t, "config", "init", "--config", path); err == nil {
		t.Error("expected init to refuse to overwrite")
	}

	out, err = execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "baud_rate: 9600") {
		t.Errorf("show output = %q", out)
	}

	out, err = execute(t, "config", "save", "bench", "-p", "/dev/ttyUSB1", "-b", "115200", "--config", path)
	if err != nil {
		t.Fatalf("config save: %v", err)
	}
	if !strings.Contains(out, "Profile 'bench' saved") || !strings.Contains(out, "115200") {
		t.Errorf("save output = %q", out)
	}

	if _, err := execute(t, "config", "describe", "bench", "lab", "supply", "--config", path); err != nil {
		t.Fatalf("config describe: %v", err)
	}

	out, err = execute(t, "config", "list", "--config", path)
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	if !strings.Contains(out, "bench") || !strings.Contains(out, "115200/8N2") {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, "config", "show", "bench", "--config", path)
	if err != nil {
		t.Fatalf("config show bench: %v", err)
	}
	if !strings.Contains(out, "lab supply") || !strings.Contains(out, "/dev/ttyUSB1") {
		t.Errorf("show bench output = %q", out)
	}

	if _, err := execute(t, "config", "save", "bad", "--parity", "sideways", "--config", path); err == nil {
		t.Error("expected invalid parity to be rejected")
	}

	if _, err := execute(t, "config", "rm", "bench", "--config", path); err != nil {
		t.Fatalf("config rm: %v", err)
	}
	if _, err := execute(t, "config", "show", "bench", "--config", path); err == nil {
		t.Error("expected deleted profile to be gone")
	}

	out, err = execute(t, "config", "list", "--config", path)
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	if !strings.Contains(out, "No saved profiles found.") {
		t.Errorf("empty list output = %q", out)
	}
}

func TestProfileDir(t *testing.T) {
	if got := profileDir(""); got != "" {
		t.Errorf("profileDir(\"\") = %q", got)
	}
	if got := profileDir(filepath.Join("a", "b", "config.yaml")); got != filepath.Join("a", "b") {
		t.Errorf("profileDir = %q", got)
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Time{}); got != "Never" {
		t.Errorf("formatTime(zero) = %q", got)
	}
	ts := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	if got := formatTime(ts); got != "2024-03-09 14:05" {
		t.Errorf("formatTime = %q", got)
	}
}
