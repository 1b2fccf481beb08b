package cmd

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/camrelay/capture"
	"github.com/justapithecus/camrelay/cli/config"
	"github.com/justapithecus/camrelay/types"
	"github.com/justapithecus/camrelay/wire"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestReceiveFlags_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for _, f := range append(inputFlags(), receiveFlags()...) {
		for _, name := range f.Names() {
			if seen[name] {
				t.Errorf("duplicate flag %q", name)
			}
			seen[name] = true
		}
	}
}

// newTestCLIContext builds a minimal *cli.Context with the given string flags.
// flagValues are marked as explicitly set (c.IsSet returns true);
// defaultFlags are registered with their defaults only.
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range defaultFlags {
		fs.String(name, val, "")
	}
	for name := range flagValues {
		if fs.Lookup(name) == nil {
			fs.String(name, "", "")
		}
	}
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString(t *testing.T) {
	tests := []struct {
		name       string
		set        map[string]string
		defaults   map[string]string
		fromConfig string
		want       string
	}{
		{"cli wins", map[string]string{"source": "cli-val"}, nil, "config-val", "cli-val"},
		{"config fallback", nil, map[string]string{"source": ""}, "config-val", "config-val"},
		{"flag default", nil, map[string]string{"source": "default"}, "", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLIContext(t, tt.set, tt.defaults)
			if got := resolveString(c, "source", tt.fromConfig); got != tt.want {
				t.Errorf("resolveString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigVal(t *testing.T) {
	if got := configVal(nil, func(c *config.Config) string { return c.Source }); got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
	cfg := &config.Config{Source: "from-config"}
	if got := configVal(cfg, func(c *config.Config) string { return c.Source }); got != "from-config" {
		t.Errorf("expected from-config, got %q", got)
	}
}

func TestResolveInt(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("batch-images", 0, "")
	c := cli.NewContext(cli.NewApp(), fs, nil)

	if got := resolveInt(c, "batch-images", 50); got != 50 {
		t.Errorf("expected config fallback 50, got %d", got)
	}
	_ = fs.Set("batch-images", "5")
	if got := resolveInt(c, "batch-images", 50); got != 5 {
		t.Errorf("expected CLI to win with 5, got %d", got)
	}
}

func TestResolveBool(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("match-stream", false, "")
	c := cli.NewContext(cli.NewApp(), fs, nil)

	if !resolveBool(c, "match-stream", true) {
		t.Error("expected config true to apply")
	}
	_ = fs.Set("match-stream", "false")
	if resolveBool(c, "match-stream", true) {
		t.Error("expected explicit CLI false to win")
	}
}

func TestResolveDuration(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("read-timeout", 0, "")
	c := cli.NewContext(cli.NewApp(), fs, nil)

	if got := resolveDuration(c, "read-timeout", 10*time.Second); got != 10*time.Second {
		t.Errorf("expected config fallback 10s, got %v", got)
	}
	_ = fs.Set("read-timeout", "30s")
	if got := resolveDuration(c, "read-timeout", 10*time.Second); got != 30*time.Second {
		t.Errorf("expected CLI 30s to win, got %v", got)
	}
}

// testApp wires every command with output captured and os.Exit suppressed.
func testApp() (*cli.App, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	app := cli.NewApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Commands = []*cli.Command{
		ListenCommand(),
		ReplayCommand(),
		RecordCommand(),
		InspectCommand(),
		StatsCommand(),
		VersionCommand("abc123"),
	}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app, &stdout, &stderr
}

// exitCode extracts the exit code from an app.Run error (0 for nil).
func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("expected cli.ExitCoder, got %T: %v", err, err)
	}
	return ec.ExitCode()
}

func encode(t *testing.T, kind types.Kind, chunk uint16, frameID, streamID uint32, body ...byte) []byte {
	t.Helper()
	dg, err := wire.Encode(kind, chunk, frameID, streamID, body)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return dg
}

// writeCapture writes datagrams to a capture file and returns its path.
func writeCapture(t *testing.T, datagrams ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.cap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create capture: %v", err)
	}
	defer f.Close()

	w := capture.NewWriter(f)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, dg := range datagrams {
		if err := w.WriteDatagram(ts.Add(time.Duration(i)*time.Millisecond), "10.0.0.7:5000", dg); err != nil {
			t.Fatalf("WriteDatagram failed: %v", err)
		}
	}
	return path
}

// oneImage is a three fragment image with a leading junk byte before SOI.
func oneImage(t *testing.T, frameID uint32) [][]byte {
	t.Helper()
	return [][]byte{
		encode(t, types.KindFirst, 0, frameID, 9, 0x00, 0xff, 0xd8, 0x01),
		encode(t, types.KindMiddle, 1, frameID, 9, 0x02),
		encode(t, types.KindEnd, 2, frameID, 9, 0xff, 0xd9),
	}
}
