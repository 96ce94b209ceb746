// Package hmdd loads the Human microRNA Disease Database.
package hmdd

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danmuck/bio2bel/internal/bel"
	"github.com/danmuck/bio2bel/internal/download"
	"github.com/danmuck/bio2bel/internal/manager"
	"github.com/danmuck/bio2bel/internal/plugins"
	"github.com/danmuck/bio2bel/internal/sources/tabular"
	"github.com/danmuck/bio2bel/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/charmap"
)

const (
	Name       = "hmdd"
	Version    = "3.2"
	DefaultURL = "http://www.cuilab.cn/static/hmdd3/data/alldata.txt"
	fileName   = "alldata.txt"
)

var columns = []string{"category", "mir", "disease", "pmid", "description"}

var schema = store.Schema{
	{Name: "hmdd_mirna", Create: `CREATE TABLE IF NOT EXISTS hmdd_mirna (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`},
	{Name: "hmdd_disease", Create: `CREATE TABLE IF NOT EXISTS hmdd_disease (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`},
	{Name: "hmdd_association", Create: `CREATE TABLE IF NOT EXISTS hmdd_association (
		id INTEGER PRIMARY KEY,
		mirna_id INTEGER NOT NULL REFERENCES hmdd_mirna(id),
		disease_id INTEGER NOT NULL REFERENCES hmdd_disease(id),
		category TEXT NOT NULL DEFAULT '',
		pmid TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	)`},
}

// Manager is the HMDD database manager.
type Manager struct {
	*manager.Base
	url    string
	client *http.Client
	logger zerolog.Logger
}

// New opens the HMDD tables on st. An empty url means DefaultURL.
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

// Plugin is the catalog factory for hmdd.
func Plugin(env *plugins.Env) (plugins.Descriptor, error) {
	dataDir, err := env.Config.DataDir(Name)
	if err != nil {
		return plugins.Descriptor{}, err
	}
	url := env.Config.Module(Name).URL
	d := plugins.Descriptor{
		Name:        Name,
		Description: "Human microRNA Disease Database (HMDD) v" + Version,
		Capabilities: manager.NewCapabilities(
			manager.CapPopulate,
			manager.CapDrop,
			manager.CapSummarize,
			manager.CapCache,
			manager.CapBEL,
			manager.CapNamespace,
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
	n, err := m.Count(ctx, "hmdd_association")
	return n > 0, err
}

// Populate downloads alldata.txt (ISO-8859-1) and loads it in one transaction.
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

	mirnas := make(map[string]int64)
	diseases := make(map[string]int64)
	var inserted, skipped int
	err = tabular.Read(charmap.ISO8859_1.NewDecoder().Reader(f), columns, func(line int, row tabular.Row) error {
		mir, disease := row.Get("mir"), row.Get("disease")
		if mir == "" || disease == "" {
			skipped++
			return nil
		}
		mirnaID, err := upsertName(ctx, tx, "hmdd_mirna", mirnas, mir)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		diseaseID, err := upsertName(ctx, tx, "hmdd_disease", diseases, disease)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO hmdd_association (mirna_id, disease_id, category, pmid, description) VALUES (?, ?, ?, ?, ?)",
			mirnaID, diseaseID, row.Get("category"), row.Get("pmid"), row.Get("description"),
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
		Int("mirnas", len(mirnas)).
		Int("diseases", len(diseases)).
		Int("skipped", skipped).
		Msg("hmdd.Populate loaded")
	return nil
}

func upsertName(ctx context.Context, tx *sql.Tx, table string, cache map[string]int64, name string) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (name) VALUES (?)", table), name)
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
	out := make(map[string]int, 3)
	for key, table := range map[string]string{
		"mirnas":       "hmdd_mirna",
		"diseases":     "hmdd_disease",
		"associations": "hmdd_association",
	} {
		n, err := m.Count(ctx, table)
		if err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, nil
}

// ToBEL renders every association as m(MIRBASE:mir) regulates
// path(HMDD:disease), cited by PubMed id.
func (m *Manager) ToBEL(ctx context.Context) (*bel.Graph, error) {
	rows, err := m.Store().DB().QueryContext(ctx, `
		SELECT mi.name, d.name, a.pmid, a.description
		FROM hmdd_association a
		JOIN hmdd_mirna mi ON mi.id = a.mirna_id
		JOIN hmdd_disease d ON d.id = a.disease_id
		ORDER BY a.pmid, a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	g := bel.NewGraph("HMDD", Version)
	g.Description = "miRNA-disease associations from the Human microRNA Disease Database"
	for rows.Next() {
		var mir, disease, pmid, evidence string
		if err := rows.Scan(&mir, &disease, &pmid, &evidence); err != nil {
			return nil, err
		}
		err := g.Add(bel.Statement{
			Subject:  bel.MicroRNA("MIRBASE", mir),
			Relation: bel.Regulates,
			Object:   bel.Pathology("HMDD", disease),
			Citation: pmid,
			Evidence: evidence,
		})
		if err != nil {
			return nil, err
		}
	}
	return g, rows.Err()
}

// ToBELNamespace lists disease names under the HMDD keyword used by ToBEL.
func (m *Manager) ToBELNamespace(ctx context.Context) (*bel.Namespace, error) {
	rows, err := m.Store().DB().QueryContext(ctx, "SELECT name FROM hmdd_disease ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ns := bel.NewNamespace("HMDD", "Human microRNA Disease Database", names)
	ns.Version = Version
	return ns, nil
}
