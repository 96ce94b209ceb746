package plugins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danmuck/bio2bel/internal/bel"
	"github.com/danmuck/bio2bel/internal/config"
	"github.com/danmuck/bio2bel/internal/manager"
	"github.com/danmuck/bio2bel/internal/store"
	"github.com/danmuck/bio2bel/internal/testutil/testlog"
	"github.com/spf13/cobra"
)

type fakeManager struct {
	*manager.Base
	table    string
	populate func() error
}

func (m *fakeManager) IsPopulated(ctx context.Context) (bool, error) {
	n, err := m.Count(ctx, m.table)
	return n > 0, err
}

func (m *fakeManager) Populate(ctx context.Context) error {
	if m.populate != nil {
		if err := m.populate(); err != nil {
			return err
		}
	}
	_, err := m.Store().DB().ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (name) VALUES ('x')", m.table))
	return err
}

func (m *fakeManager) Summarize(ctx context.Context) (map[string]int, error) {
	n, err := m.Count(ctx, m.table)
	return map[string]int{"items": n}, err
}

func (m *fakeManager) ToBEL(context.Context) (*bel.Graph, error) {
	g := bel.NewGraph(m.Module(), "1.0")
	err := g.Add(bel.Statement{
		Subject:  bel.MicroRNA("MIRBASE", "hsa-mir-21"),
		Relation: bel.Regulates,
		Object:   bel.Pathology("MESH", "Neoplasms"),
		Citation: "123",
	})
	return g, err
}

func fakeDescriptor(name string, populate func() error, caps ...manager.Capability) Descriptor {
	table := name + "_item"
	d := Descriptor{
		Name:         name,
		Description:  "fake " + name,
		Capabilities: manager.NewCapabilities(caps...),
	}
	d.NewManager = func(ctx context.Context, env *Env, connection string) (manager.Manager, error) {
		st, err := store.Open(ctx, connection)
		if err != nil {
			return nil, err
		}
		schema := store.Schema{{
			Name:   table,
			Create: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, name TEXT)", table),
		}}
		base, err := manager.NewBase(ctx, name, st, env.Config.Directory, schema)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		return &fakeManager{Base: base, table: table, populate: populate}, nil
	}
	d.Command = func(env *Env) *cobra.Command { return StandardCommand(env, d) }
	return d
}

func staticFactory(d Descriptor) Factory {
	return func(*Env) (Descriptor, error) { return d, nil }
}

func failingFactory(err error) Factory {
	return func(*Env) (Descriptor, error) { return Descriptor{}, err }
}

var allCaps = []manager.Capability{manager.CapPopulate, manager.CapDrop, manager.CapSummarize, manager.CapBEL}

func newTestEnv(t *testing.T) (*Env, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	logger := testlog.Start(t)
	t.Setenv(config.EnvConnection, "")
	cfg, err := config.LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	var out, errOut bytes.Buffer
	return &Env{Config: cfg, Logger: logger, Out: &out, Err: &errOut, HTTPClient: http.DefaultClient}, &out, &errOut
}

func TestDiscoverSkipsBrokenPlugin(t *testing.T) {
	env, _, errOut := newTestEnv(t)
	catalog := Catalog{
		{ID: "alpha", Factory: staticFactory(fakeDescriptor("alpha", nil, allCaps...))},
		{ID: "beta", Factory: failingFactory(errors.New("missing dependency"))},
	}

	reg := Discover(env, catalog, nil)
	if got := reg.Names(); len(got) != 1 || got[0] != "alpha" {
		t.Fatalf("expected [alpha], got %v", got)
	}

	d := NewDispatcher(env, reg)
	if code := d.Dispatch(context.Background(), "alpha", []string{"--help"}); code != ExitOK {
		t.Fatalf("alpha --help exit %d: %s", code, errOut.String())
	}
	if code := d.Dispatch(context.Background(), "beta", nil); code != ExitUsage {
		t.Fatalf("expected exit %d for beta, got %d", ExitUsage, code)
	}
	if !bytes.Contains(errOut.Bytes(), []byte(`unknown sub-command "beta"`)) {
		t.Fatalf("expected unknown sub-command message, got %q", errOut.String())
	}
}

func TestDiscoverIsDeterministic(t *testing.T) {
	env, _, _ := newTestEnv(t)
	catalog := Catalog{
		{ID: "gamma", Factory: staticFactory(fakeDescriptor("gamma", nil, allCaps...))},
		{ID: "alpha", Factory: staticFactory(fakeDescriptor("alpha", nil, allCaps...))},
		{ID: "broken", Factory: failingFactory(errors.New("boom"))},
	}
	first := Discover(env, catalog, nil).Names()
	second := Discover(env, catalog, nil).Names()
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Fatalf("discover not deterministic: %v vs %v", first, second)
	}
	if fmt.Sprint(first) != "[gamma alpha]" {
		t.Fatalf("expected catalog order, got %v", first)
	}
}

func TestDiscoverDuplicateNameFirstWins(t *testing.T) {
	env, _, _ := newTestEnv(t)
	first := fakeDescriptor("alpha", nil, allCaps...)
	second := fakeDescriptor("alpha", nil, manager.CapSummarize)
	second.Description = "shadow"
	catalog := Catalog{
		{ID: "alpha", Factory: staticFactory(first)},
		{ID: "alpha-fork", Factory: staticFactory(second)},
	}

	reg := Discover(env, catalog, nil)
	if reg.Len() != 1 {
		t.Fatalf("expected 1 plugin, got %v", reg.Names())
	}
	got, ok := reg.Lookup("alpha")
	if !ok || got.Description != "fake alpha" {
		t.Fatalf("expected first registration to win, got %+v", got)
	}
}

func TestDiscoverSkipsInvalidDescriptors(t *testing.T) {
	env, _, _ := newTestEnv(t)
	noCommand := fakeDescriptor("nocmd", nil, allCaps...)
	noCommand.Command = nil
	catalog := Catalog{
		{ID: "upper", Factory: staticFactory(fakeDescriptor("Upper", nil, allCaps...))},
		{ID: "nocmd", Factory: staticFactory(noCommand)},
		{ID: "panics", Factory: func(*Env) (Descriptor, error) { panic("init exploded") }},
		{ID: "ok", Factory: staticFactory(fakeDescriptor("ok", nil, allCaps...))},
	}

	reg := Discover(env, catalog, []string{"upper", "nocmd", "panics", "missing", "ok", "ok", "none", ""})
	if fmt.Sprint(reg.Names()) != "[ok]" {
		t.Fatalf("expected only ok, got %v", reg.Names())
	}
}

func TestDiscoverConfiguredIDs(t *testing.T) {
	env, _, _ := newTestEnv(t)
	catalog := Catalog{
		{ID: "alpha", Factory: staticFactory(fakeDescriptor("alpha", nil, allCaps...))},
		{ID: "beta", Factory: staticFactory(fakeDescriptor("beta", nil, allCaps...))},
	}
	if reg := Discover(env, catalog, []string{}); reg.Len() != 0 {
		t.Fatalf("empty id list must give empty registry, got %v", reg.Names())
	}
	if reg := Discover(env, catalog, []string{" BETA "}); fmt.Sprint(reg.Names()) != "[beta]" {
		t.Fatalf("expected [beta], got %v", reg.Names())
	}
}

func TestImportErrorUnwraps(t *testing.T) {
	testlog.Start(t)
	cause := errors.New("cause")
	err := error(&ImportError{ID: "x", Err: cause})
	if !errors.Is(err, ErrPluginImport) || !errors.Is(err, cause) {
		t.Fatalf("import error must match sentinel and cause: %v", err)
	}
	var ie *ImportError
	if !errors.As(err, &ie) || ie.ID != "x" {
		t.Fatalf("expected *ImportError, got %T", err)
	}
}

func TestCatalogFindIgnoresCase(t *testing.T) {
	env, _, _ := newTestEnv(t)
	catalog := Catalog{
		{ID: "HMDD", Factory: staticFactory(fakeDescriptor("hmdd", nil, allCaps...))},
	}
	if _, ok := catalog.Find(" hmdd "); !ok {
		t.Fatalf("expected mixed-case catalog id to be found")
	}
	if reg := Discover(env, catalog, nil); fmt.Sprint(reg.Names()) != "[hmdd]" {
		t.Fatalf("expected [hmdd] from default discovery, got %v", reg.Names())
	}
	if reg := Discover(env, catalog, []string{"Hmdd"}); fmt.Sprint(reg.Names()) != "[hmdd]" {
		t.Fatalf("expected [hmdd] from configured ids, got %v", reg.Names())
	}
}

func TestValidateDescriptorRequiresManager(t *testing.T) {
	testlog.Start(t)
	for _, c := range []manager.Capability{manager.CapPopulate, manager.CapDrop, manager.CapSummarize, manager.CapBEL, manager.CapNamespace} {
		d := fakeDescriptor("nomgr", nil, c)
		d.NewManager = nil
		if err := ValidateDescriptor(d); !errors.Is(err, ErrInvalidDescriptor) {
			t.Fatalf("%s without a manager: expected ErrInvalidDescriptor, got %v", c, err)
		}
	}
	d := fakeDescriptor("cacheonly", nil, manager.CapCache)
	d.NewManager = nil
	if err := ValidateDescriptor(d); err != nil {
		t.Fatalf("cache needs no manager: %v", err)
	}
}
