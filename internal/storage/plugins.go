package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// pluginStateModel remembers whether a plugin was switched off, so the
// choice survives across runs.
type pluginStateModel struct {
	bun.BaseModel `bun:"table:plugin_states"`

	Name      string    `bun:"name,pk,type:varchar(255)"`
	Enabled   bool      `bun:"enabled,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SavePluginState records the enabled flag of the named plugin.
func (s *Store) SavePluginState(ctx context.Context, name string, enabled bool) error {
	row := &pluginStateModel{Name: name, Enabled: enabled, UpdatedAt: time.Now().UTC()}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*pluginStateModel)(nil)).Where("name = ?", name).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving plugin state %s: %w", name, err)
	}
	return nil
}

// PluginStates returns the recorded enabled flag of every plugin that has one.
func (s *Store) PluginStates(ctx context.Context) (map[string]bool, error) {
	var rows []pluginStateModel
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("loading plugin states: %w", err)
	}
	states := make(map[string]bool, len(rows))
	for _, r := range rows {
		states[r.Name] = r.Enabled
	}
	return states, nil
}
