package manager

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/bio2bel/internal/store"
	"github.com/danmuck/bio2bel/internal/testutil/testlog"
)

func widgetSpec(t *testing.T, caps Capabilities, withBEL bool) (CommandSpec, string) {
	t.Helper()
	connection := tempConnection(t)
	dataDir := t.TempDir()
	spec := CommandSpec{
		Module:       "widget",
		Capabilities: caps,
		Connection:   connection,
		DataDir:      dataDir,
		Open: func(ctx context.Context, conn string) (Manager, error) {
			st, err := store.Open(ctx, conn)
			if err != nil {
				return nil, err
			}
			base, err := NewBase(ctx, "widget", st, dataDir, widgetSchema)
			if err != nil {
				_ = st.Close()
				return nil, err
			}
			m := &widgetManager{Base: base, rows: []string{"a", "b", "c"}}
			if withBEL {
				return belWidgetManager{m}, nil
			}
			return m, nil
		},
	}
	return spec, connection
}

func run(t *testing.T, spec CommandSpec, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(spec)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewCommandGatesSubcommands(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapPopulate, CapSummarize), false)
	cmd := NewCommand(spec)

	got := map[string]bool{}
	for _, sub := range cmd.Commands() {
		got[sub.Name()] = true
	}
	for _, name := range []string{"populate", "summarize", "actions"} {
		if !got[name] {
			t.Fatalf("expected subcommand %q, have %v", name, got)
		}
	}
	for _, name := range []string{"drop", "cache", "to-bel"} {
		if got[name] {
			t.Fatalf("subcommand %q must be gated by capability", name)
		}
	}
	if f := cmd.PersistentFlags().Lookup("connection"); f == nil || f.DefValue != spec.Connection || f.Shorthand != "c" {
		t.Fatalf("unexpected connection flag: %+v", f)
	}
}

func TestPopulateSummarizeActionsCommands(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapPopulate, CapSummarize, CapDrop), false)

	if _, err := run(t, spec, "", "populate"); err != nil {
		t.Fatalf("populate: %v", err)
	}
	out, err := run(t, spec, "", "populate")
	if err != nil {
		t.Fatalf("second populate: %v", err)
	}
	if !strings.Contains(out, "already populated") {
		t.Fatalf("expected skip message, got %q", out)
	}

	out, err = run(t, spec, "", "summarize")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if out != "Widgets: 3\n" {
		t.Fatalf("unexpected summary %q", out)
	}

	out, err = run(t, spec, "", "actions")
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if strings.Count(out, "\tpopulate") != 1 {
		t.Fatalf("expected one populate action, got %q", out)
	}
}

func TestDropCommandConfirms(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapPopulate, CapDrop, CapSummarize), false)
	if _, err := run(t, spec, "", "populate"); err != nil {
		t.Fatalf("populate: %v", err)
	}

	out, err := run(t, spec, "n\n", "drop")
	if err != nil {
		t.Fatalf("drop declined: %v", err)
	}
	if !strings.Contains(out, "Aborted") {
		t.Fatalf("expected abort, got %q", out)
	}
	if out, _ := run(t, spec, "", "summarize"); out != "Widgets: 3\n" {
		t.Fatalf("declined drop must keep data, got %q", out)
	}

	if _, err := run(t, spec, "", "drop", "-y"); err != nil {
		t.Fatalf("drop -y: %v", err)
	}
	if out, _ := run(t, spec, "", "summarize"); out != "Widgets: 0\n" {
		t.Fatalf("drop must clear data, got %q", out)
	}
}

func TestConnectionFlagOverridesDefault(t *testing.T) {
	testlog.Start(t)
	spec, defaultConn := widgetSpec(t, NewCapabilities(CapPopulate, CapSummarize), false)
	other := tempConnection(t)

	if _, err := run(t, spec, "", "populate", "-c", other); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if out, _ := run(t, spec, "", "summarize", "--connection", other); out != "Widgets: 3\n" {
		t.Fatalf("flag connection summary %q", out)
	}
	if out, _ := run(t, spec, "", "summarize"); out != "Widgets: 0\n" {
		t.Fatalf("default connection %s must be untouched, got %q", defaultConn, out)
	}
}

func TestCacheCommands(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapCache), false)
	for _, name := range []string{"alldata.txt", "config.toml", "cache.db", "extra.tsv"} {
		if err := os.WriteFile(filepath.Join(spec.DataDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	out, err := run(t, spec, "", "cache", "ls")
	if err != nil {
		t.Fatalf("cache ls: %v", err)
	}
	if strings.Contains(out, "config.toml") || strings.Contains(out, "cache.db") {
		t.Fatalf("kept files must not be listed: %q", out)
	}
	if !strings.Contains(out, "alldata.txt") || !strings.Contains(out, "extra.tsv") {
		t.Fatalf("expected cached files listed: %q", out)
	}

	if _, err := run(t, spec, "", "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	left, err := os.ReadDir(spec.DataDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected config.toml and cache.db to remain, got %d entries", len(left))
	}

	if names, err := CacheFiles(filepath.Join(spec.DataDir, "missing")); err != nil || len(names) != 0 {
		t.Fatalf("missing dir must list nothing: %v %v", names, err)
	}
}

func TestToBELCommand(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapBEL), true)
	outPath := filepath.Join(t.TempDir(), "widget.bel")

	if _, err := run(t, spec, "", "to-bel", "-o", outPath); err != nil {
		t.Fatalf("to-bel: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "m(MIRBASE:") {
		t.Fatalf("unexpected BEL output: %s", data)
	}
}

func TestExportBELRequiresExporter(t *testing.T) {
	testlog.Start(t)
	m := newWidgetManager(t, tempConnection(t))
	var buf bytes.Buffer
	if err := ExportBEL(context.Background(), m, &buf); !errors.Is(err, ErrCapabilityMissing) {
		t.Fatalf("expected ErrCapabilityMissing, got %v", err)
	}
}

func TestToBELCommandRemovesPartialOutput(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapBEL), false)
	outPath := filepath.Join(t.TempDir(), "widget.bel")

	_, err := run(t, spec, "", "to-bel", "-o", outPath)
	if !errors.Is(err, ErrCapabilityMissing) {
		t.Fatalf("expected ErrCapabilityMissing, got %v", err)
	}
	if _, err := os.Stat(outPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed export must not leave %s behind: %v", outPath, err)
	}
}

func TestToBELCommandReportsCreateError(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapBEL), true)
	outPath := filepath.Join(t.TempDir(), "missing", "widget.bel")

	if _, err := run(t, spec, "", "to-bel", "-o", outPath); err == nil {
		t.Fatalf("expected error writing into a missing directory")
	}
}

func TestNamespaceWriteCommand(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapPopulate, CapNamespace), true)
	if _, err := run(t, spec, "", "populate"); err != nil {
		t.Fatalf("populate: %v", err)
	}

	out, err := run(t, spec, "", "belns", "write")
	if err != nil {
		t.Fatalf("belns write: %v", err)
	}
	if !strings.Contains(out, "Keyword=WIDGET\n") || !strings.Contains(out, "[Values]\na|A\nb|A\nc|A\n") {
		t.Fatalf("unexpected namespace output:\n%s", out)
	}

	outPath := filepath.Join(t.TempDir(), "widget.belns")
	if _, err := run(t, spec, "", "belns", "write", "-o", outPath); err != nil {
		t.Fatalf("belns write -o: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "[Namespace]\n") {
		t.Fatalf("unexpected file contents:\n%s", data)
	}
}

func TestNamespaceCommandGated(t *testing.T) {
	testlog.Start(t)
	spec, _ := widgetSpec(t, NewCapabilities(CapBEL), true)
	for _, sub := range NewCommand(spec).Commands() {
		if sub.Name() == "belns" {
			t.Fatalf("belns must require the namespace capability")
		}
	}

	m := newWidgetManager(t, tempConnection(t))
	var buf bytes.Buffer
	if err := ExportNamespace(context.Background(), m, &buf); !errors.Is(err, ErrCapabilityMissing) {
		t.Fatalf("expected ErrCapabilityMissing, got %v", err)
	}
}

func TestCommandWithoutOpener(t *testing.T) {
	testlog.Start(t)
	spec := CommandSpec{Module: "widget", Capabilities: NewCapabilities(CapCache), DataDir: t.TempDir()}
	cmd := NewCommand(spec)
	for _, sub := range cmd.Commands() {
		if sub.Name() == "actions" {
			t.Fatalf("actions must not be offered without an opener")
		}
	}
	if _, err := run(t, spec, "", "cache", "ls"); err != nil {
		t.Fatalf("cache ls: %v", err)
	}
}
