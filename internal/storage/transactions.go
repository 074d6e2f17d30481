package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/assetplug/internal/asset"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// transactionModel is the row layout of the transactions table.
type transactionModel struct {
	bun.BaseModel `bun:"table:transactions"`

	ID              string         `bun:"id,pk,type:varchar(36)"`
	AssetID         string         `bun:"asset_id,notnull,type:varchar(36)"`
	TransactionType string         `bun:"transaction_type,notnull,type:varchar(32)"`
	AmountBefore    float64        `bun:"amount_before,notnull"`
	AmountAfter     float64        `bun:"amount_after,notnull"`
	Note            sql.NullString `bun:"note"`
	Timestamp       time.Time      `bun:"timestamp,notnull"`
}

func transactionToModel(t *asset.Transaction) *transactionModel {
	m := &transactionModel{
		ID:              t.ID.String(),
		AssetID:         t.AssetID.String(),
		TransactionType: string(t.Type),
		AmountBefore:    t.AmountBefore,
		AmountAfter:     t.AmountAfter,
		Timestamp:       t.Timestamp.UTC(),
	}
	if t.Note != nil {
		m.Note = sql.NullString{String: *t.Note, Valid: true}
	}
	return m
}

func modelToTransaction(m *transactionModel) (*asset.Transaction, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing transaction id %q: %w", m.ID, err)
	}
	assetID, err := uuid.Parse(m.AssetID)
	if err != nil {
		return nil, fmt.Errorf("parsing asset id %q of transaction %s: %w", m.AssetID, m.ID, err)
	}

	// Rows written by other tools may carry names this build does not know.
	typ, ok := asset.ParseTransactionType(m.TransactionType)
	if !ok {
		typ = asset.TxValueChange
	}

	t := &asset.Transaction{
		ID:           id,
		AssetID:      assetID,
		Type:         typ,
		AmountBefore: m.AmountBefore,
		AmountAfter:  m.AmountAfter,
		Timestamp:    m.Timestamp.UTC(),
	}
	if m.Note.Valid {
		note := m.Note.String
		t.Note = &note
	}
	return t, nil
}

// AddTransaction records a transaction against an existing asset.
func (s *Store) AddTransaction(ctx context.Context, t *asset.Transaction) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*assetModel)(nil)).Where("id = ?", t.AssetID.String()).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, t.AssetID)
		}
		_, err = tx.NewInsert().Model(transactionToModel(t)).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("adding transaction to asset %s: %w", t.AssetID, err)
	}
	return nil
}

// UpdateWithTransaction overwrites an asset and records t in one
// database transaction, so the value and its history never disagree.
func (s *Store) UpdateWithTransaction(ctx context.Context, a *asset.Asset, t *asset.Transaction) error {
	m, err := assetToModel(a)
	if err != nil {
		return err
	}
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(m).WherePK().Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, a.ID)
		}
		_, err = tx.NewInsert().Model(transactionToModel(t)).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating asset %s: %w", a.ID, err)
	}
	return nil
}

// Transactions returns the history of an asset, newest first. An asset
// without history, or an unknown id, yields an empty slice.
func (s *Store) Transactions(ctx context.Context, assetID uuid.UUID) ([]*asset.Transaction, error) {
	var rows []transactionModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("asset_id = ?", assetID.String()).
		OrderExpr("timestamp DESC, id").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading transactions of %s: %w", assetID, err)
	}

	out := make([]*asset.Transaction, 0, len(rows))
	for i := range rows {
		t, err := modelToTransaction(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func deleteTransactions(ctx context.Context, tx bun.Tx, assetID uuid.UUID) error {
	_, err := tx.NewDelete().Model((*transactionModel)(nil)).Where("asset_id = ?", assetID.String()).Exec(ctx)
	return err
}
