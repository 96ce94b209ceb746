package manager

import (
	"context"
	"fmt"

	"github.com/danmuck/bio2bel/internal/store"
	"github.com/rs/zerolog/log"
)

// PopulateOptions mirrors the populate command flags.
type PopulateOptions struct {
	// Reset drops and recreates the tables before anything else.
	Reset bool
	// Force re-populates an already populated database from empty tables.
	Force bool
}

// RunPopulate populates m and records the populate action. It returns
// ErrAlreadyPopulated, without touching the data, when m is populated and
// neither Reset nor Force is set.
func RunPopulate(ctx context.Context, m Manager, opts PopulateOptions) error {
	module := m.Module()
	if opts.Reset {
		log.Info().Str("module", module).Msg("manager.RunPopulate reset")
		if err := resetTables(ctx, m); err != nil {
			return err
		}
	}

	populated, err := m.IsPopulated(ctx)
	if err != nil {
		return fmt.Errorf("%s: check populated: %w", module, err)
	}
	if populated {
		if !opts.Force {
			return fmt.Errorf("%w: %s", ErrAlreadyPopulated, module)
		}
		log.Info().Str("module", module).Msg("manager.RunPopulate force overwrite")
		if err := resetTables(ctx, m); err != nil {
			return err
		}
	}

	if err := m.Populate(ctx); err != nil {
		return fmt.Errorf("%s: populate: %w", module, err)
	}
	if err := m.Store().RecordAction(ctx, module, store.ActionPopulate); err != nil {
		return err
	}
	log.Info().Str("module", module).Msg("manager.RunPopulate done")
	return nil
}

func resetTables(ctx context.Context, m Manager) error {
	if err := m.DropAll(ctx); err != nil {
		return fmt.Errorf("%s: drop: %w", m.Module(), err)
	}
	if err := m.CreateAll(ctx); err != nil {
		return fmt.Errorf("%s: create: %w", m.Module(), err)
	}
	return nil
}
