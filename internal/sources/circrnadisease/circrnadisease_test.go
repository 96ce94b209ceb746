package circrnadisease

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/bio2bel/internal/manager"
	"github.com/danmuck/bio2bel/internal/sources/tabular"
	"github.com/danmuck/bio2bel/internal/store"
	"github.com/danmuck/bio2bel/internal/testutil/testlog"
)

const fixture = "pmid\tcircRNA id\tcircRNA name\tcircRNA synonyms\tdisease\tmethod of circRNA detection\tspecies\texpression pattern\n" +
	"26242460\thsa_circ_0001649\tcircSHPRH\t\tHepatocellular carcinoma\tqRT-PCR\tHuman\tdown-regulated\n" +
	"27058418\thsa_circ_0001649\tcircSHPRH\t\tColorectal cancer\tqRT-PCR\tHuman\tdown-regulated\n" +
	"26873924\tmmu_circ_0000309\tcircRNA_0309\tcirc-309\tHepatocellular carcinoma\tmicroarray\tMouse\tup-regulated\n" +
	"26873925\t\tunnamed\t\tGlioma\tRNA-seq\tHuman\tup-regulated\n" +
	"26873926\thsa_circ_9999999\tcircOrphan\t\t\tRNA-seq\tHuman\tup-regulated\n"

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return "file://" + path
}

func newManager(t *testing.T, url string) *Manager {
	t.Helper()
	logger := testlog.Start(t)
	ctx := context.Background()
	st, err := store.Open(ctx, "sqlite:///"+filepath.Join(t.TempDir(), "bio2bel.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	m, err := New(ctx, st, t.TempDir(), url, nil, logger)
	if err != nil {
		_ = st.Close()
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestPopulateSummarize(t *testing.T) {
	m := newManager(t, writeFixture(t, fixture))
	ctx := context.Background()

	if err := manager.RunPopulate(ctx, m, manager.PopulateOptions{}); err != nil {
		t.Fatalf("populate: %v", err)
	}
	summary, err := m.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	want := map[string]int{"circrnas": 2, "diseases": 2, "associations": 3, "species": 2}
	for k, v := range want {
		if summary[k] != v {
			t.Fatalf("summary[%s]=%d want %d (%v)", k, summary[k], v, summary)
		}
	}
	if _, err := os.Stat(filepath.Join(m.DataDir(), fileName)); err != nil {
		t.Fatalf("expected cached copy in data dir: %v", err)
	}
	if err := manager.RunPopulate(ctx, m, manager.PopulateOptions{}); !errors.Is(err, manager.ErrAlreadyPopulated) {
		t.Fatalf("expected ErrAlreadyPopulated, got %v", err)
	}
}

func TestPopulateRequiresColumns(t *testing.T) {
	m := newManager(t, writeFixture(t, "pmid\tdisease\n1\tGlioma\n"))
	err := m.Populate(context.Background())
	if !errors.Is(err, tabular.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if ok, _ := m.IsPopulated(context.Background()); ok {
		t.Fatalf("failed populate must leave the database empty")
	}
}

func TestManagerIsNotBELExporter(t *testing.T) {
	m := newManager(t, writeFixture(t, fixture))
	var mm manager.Manager = m
	if _, ok := mm.(manager.BELExporter); ok {
		t.Fatalf("circrnadisease must not export BEL")
	}
}

func TestPopulateSkipsRowsWithoutDisease(t *testing.T) {
	m := newManager(t, writeFixture(t, fixture))
	ctx := context.Background()
	if err := m.Populate(ctx); err != nil {
		t.Fatalf("populate: %v", err)
	}
	var n int
	err := m.Store().DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM circrnadisease_circrna WHERE identifier = ?", "hsa_circ_9999999",
	).Scan(&n)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 0 {
		t.Fatalf("circRNA from a row without disease must not be stored")
	}
	err = m.Store().DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM circrnadisease_circrna c
		WHERE NOT EXISTS (SELECT 1 FROM circrnadisease_association a WHERE a.circrna_id = c.id)`).Scan(&n)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no circRNAs without associations, got %d", n)
	}
}
