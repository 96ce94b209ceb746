// Package circrnadisease loads experimentally supported circRNA-disease
// associations.
package circrnadisease

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danmuck/bio2bel/internal/download"
	"github.com/danmuck/bio2bel/internal/manager"
	"github.com/danmuck/bio2bel/internal/plugins"
	"github.com/danmuck/bio2bel/internal/sources/tabular"
	"github.com/danmuck/bio2bel/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	Name       = "circrnadisease"
	DefaultURL = "http://cgga.org.cn:9091/circRNADisease/download/2017-12-25.txt"
	fileName   = "2017-12-25.txt"
)

// Source columns. Synonyms and detection method are optional.
const (
	colPMID       = "pmid"
	colID         = "circRNA id"
	colName       = "circRNA name"
	colSynonyms   = "circRNA synonyms"
	colDisease    = "disease"
	colMethod     = "method of circRNA detection"
	colSpecies    = "species"
	colExpression = "expression pattern"
)

var required = []string{colPMID, colID, colName, colDisease, colSpecies, colExpression}

var schema = store.Schema{
	{Name: "circrnadisease_circrna", Create: `CREATE TABLE IF NOT EXISTS circrnadisease_circrna (
		id INTEGER PRIMARY KEY,
		identifier TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		synonyms TEXT NOT NULL DEFAULT ''
	)`},
	{Name: "circrnadisease_disease", Create: `CREATE TABLE IF NOT EXISTS circrnadisease_disease (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`},
	{Name: "circrnadisease_association", Create: `CREATE TABLE IF NOT EXISTS circrnadisease_association (
		id INTEGER PRIMARY KEY,
		circrna_id INTEGER NOT NULL REFERENCES circrnadisease_circrna(id),
		disease_id INTEGER NOT NULL REFERENCES circrnadisease_disease(id),
		pmid TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL DEFAULT '',
		species TEXT NOT NULL DEFAULT '',
		expression TEXT NOT NULL DEFAULT ''
	)`},
}

type Manager struct {
	*manager.Base
	url    string
	client *http.Client
	logger zerolog.Logger
}

func New(ctx context.Context, st *store.Store, dataDir, url string, client *http.Client, logger zerolog.Logger) (*Manager, error) {
	base, err := manager.NewBase(ctx, Name, st, dataDir, schema)
	if err != nil {
		return nil, err
	}
	if url == "" {
		url = DefaultURL
	}
	return &Manager{Base: base, url: url, client: client, logger: logger}, nil
}

func Plugin(env *plugins.Env) (plugins.Descriptor, error) {
	dataDir, err := env.Config.DataDir(Name)
	if err != nil {
		return plugins.Descriptor{}, err
	}
	url := env.Config.Module(Name).URL
	d := plugins.Descriptor{
		Name:        Name,
		Description: "circRNADisease circRNA-disease associations",
		Capabilities: manager.NewCapabilities(
			manager.CapPopulate,
			manager.CapDrop,
			manager.CapSummarize,
			manager.CapCache,
		),
		NewManager: func(ctx context.Context, env *plugins.Env, connection string) (manager.Manager, error) {
			st, err := store.Open(ctx, connection)
			if err != nil {
				return nil, err
			}
			m, err := New(ctx, st, dataDir, url, env.HTTPClient, env.Logger)
			if err != nil {
				_ = st.Close()
				return nil, err
			}
			return m, nil
		},
	}
	d.Command = func(env *plugins.Env) *cobra.Command { return plugins.StandardCommand(env, d) }
	return d, nil
}

func (m *Manager) IsPopulated(ctx context.Context) (bool, error) {
	n, err := m.Count(ctx, "circrnadisease_association")
	return n > 0, err
}

func (m *Manager) Populate(ctx context.Context) error {
	path, err := download.EnsurePath(ctx, m.client, m.url, filepath.Join(m.DataDir(), fileName), false)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tx, err := m.Store().DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	circs := make(map[string]int64)
	diseases := make(map[string]int64)
	var inserted, skipped int
	err = tabular.Read(f, required, func(line int, row tabular.Row) error {
		if row.Get(colID) == "" || row.Get(colDisease) == "" {
			skipped++
			return nil
		}
		circID, err := circRNA(ctx, tx, circs, row)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		diseaseID, err := disease(ctx, tx, diseases, row.Get(colDisease))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO circrnadisease_association (circrna_id, disease_id, pmid, method, species, expression)
			VALUES (?, ?, ?, ?, ?, ?)`,
			circID, diseaseID, row.Get(colPMID), row.Get(colMethod), row.Get(colSpecies), row.Get(colExpression),
		)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		inserted++
		return nil
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.logger.Info().
		Str("plugin", Name).
		Int("associations", inserted).
		Int("circrnas", len(circs)).
		Int("diseases", len(diseases)).
		Int("skipped", skipped).
		Msg("circrnadisease.Populate loaded")
	return nil
}

func circRNA(ctx context.Context, tx *sql.Tx, cache map[string]int64, row tabular.Row) (int64, error) {
	identifier := row.Get(colID)
	if id, ok := cache[identifier]; ok {
		return id, nil
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO circrnadisease_circrna (identifier, name, synonyms) VALUES (?, ?, ?)",
		identifier, row.Get(colName), row.Get(colSynonyms),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	cache[identifier] = id
	return id, nil
}

func disease(ctx context.Context, tx *sql.Tx, cache map[string]int64, name string) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	res, err := tx.ExecContext(ctx, "INSERT INTO circrnadisease_disease (name) VALUES (?)", name)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	cache[name] = id
	return id, nil
}

func (m *Manager) Summarize(ctx context.Context) (map[string]int, error) {
	circs, err := m.Count(ctx, "circrnadisease_circrna")
	if err != nil {
		return nil, err
	}
	diseases, err := m.Count(ctx, "circrnadisease_disease")
	if err != nil {
		return nil, err
	}
	assocs, err := m.Count(ctx, "circrnadisease_association")
	if err != nil {
		return nil, err
	}
	species, err := m.Store().CountDistinct(ctx, "circrnadisease_association", "species")
	if err != nil {
		return nil, err
	}
	return map[string]int{
		"circrnas":     circs,
		"diseases":     diseases,
		"associations": assocs,
		"species":      species,
	}, nil
}
