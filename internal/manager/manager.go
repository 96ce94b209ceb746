package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/bio2bel/internal/bel"
	"github.com/danmuck/bio2bel/internal/store"
)

var (
	ErrInvalidModuleName = errors.New("manager: invalid module name")
	ErrAlreadyPopulated  = errors.New("manager: database already populated")
	ErrCapabilityMissing = errors.New("manager: capability not supported")
	ErrNilStore          = errors.New("manager: store is nil")
)

// Manager is the per-source database manager.
type Manager interface {
	Module() string
	Store() *store.Store
	DataDir() string
	CreateAll(ctx context.Context) error
	DropAll(ctx context.Context) error
	IsPopulated(ctx context.Context) (bool, error)
	Populate(ctx context.Context) error
	Summarize(ctx context.Context) (map[string]int, error)
	Close() error
}

// BELExporter is implemented by managers advertising CapBEL.
type BELExporter interface {
	ToBEL(ctx context.Context) (*bel.Graph, error)
}

// NamespaceExporter is implemented by managers advertising CapNamespace.
type NamespaceExporter interface {
	ToBELNamespace(ctx context.Context) (*bel.Namespace, error)
}

// Base carries the shared parts of a Manager. Sources embed *Base and add
// IsPopulated, Populate and Summarize.
type Base struct {
	module  string
	store   *store.Store
	dataDir string
	schema  store.Schema
}

// NewBase validates module, then creates the schema tables.
func NewBase(ctx context.Context, module string, st *store.Store, dataDir string, schema store.Schema) (*Base, error) {
	if err := ValidateModuleName(module); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNilStore
	}
	b := &Base{module: module, store: st, dataDir: dataDir, schema: schema}
	if err := b.CreateAll(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Base) Module() string      { return b.module }
func (b *Base) Store() *store.Store { return b.store }
func (b *Base) DataDir() string     { return b.dataDir }

// CreateAll creates the schema tables; existing tables are kept.
func (b *Base) CreateAll(ctx context.Context) error {
	return b.store.Apply(ctx, b.schema)
}

// DropAll drops the schema tables and records a drop action.
func (b *Base) DropAll(ctx context.Context) error {
	if err := b.store.Drop(ctx, b.schema); err != nil {
		return err
	}
	return b.store.RecordAction(ctx, b.module, store.ActionDrop)
}

// Count counts rows of one schema table.
func (b *Base) Count(ctx context.Context, table string) (int, error) {
	return b.store.Count(ctx, table)
}

func (b *Base) Close() error {
	return b.store.Close()
}

func (b *Base) String() string {
	if b.module == "" {
		return "<Manager>"
	}
	return fmt.Sprintf("<%sManager connection=%s>", strings.ToUpper(b.module[:1])+b.module[1:], b.store.Connection())
}

// ValidateModuleName requires a lowercase [a-z0-9._-] name without leading,
// trailing or doubled separators.
func ValidateModuleName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModuleName)
	}
	if name != strings.ToLower(name) {
		return fmt.Errorf("%w: %q must be lowercase", ErrInvalidModuleName, name)
	}
	if !isValidName(name) {
		return fmt.Errorf("%w: invalid format %q", ErrInvalidModuleName, name)
	}
	return nil
}

func isValidName(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(id)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
