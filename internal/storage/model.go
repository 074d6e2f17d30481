package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/assetplug/internal/asset"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// assetModel is the row layout of the assets table.
type assetModel struct {
	bun.BaseModel `bun:"table:assets"`

	ID          string         `bun:"id,pk,type:varchar(36)"`
	Name        string         `bun:"name,notnull"`
	AssetType   string         `bun:"asset_type,notnull,type:varchar(32)"`
	Value       float64        `bun:"value,notnull"`
	Currency    string         `bun:"currency,notnull,type:varchar(8)"`
	Description sql.NullString `bun:"description"`
	Tags        string         `bun:"tags,type:text"`
	Metadata    string         `bun:"metadata,type:text"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}

func assetToModel(a *asset.Asset) (*assetModel, error) {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}

	meta := a.Metadata
	if len(meta) == 0 {
		meta = asset.EmptyMetadata
	}
	if !json.Valid(meta) {
		return nil, fmt.Errorf("metadata is not valid JSON")
	}

	m := &assetModel{
		ID:        a.ID.String(),
		Name:      a.Name,
		AssetType: string(a.Type),
		Value:     a.Value,
		Currency:  string(a.Currency),
		Tags:      string(tagsJSON),
		Metadata:  string(meta),
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
	if a.Description != nil {
		m.Description = sql.NullString{String: *a.Description, Valid: true}
	}
	return m, nil
}

func modelToAsset(m *assetModel) (*asset.Asset, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing asset id %q: %w", m.ID, err)
	}

	a := &asset.Asset{
		ID:        id,
		Name:      m.Name,
		Type:      asset.ParseType(m.AssetType),
		Value:     m.Value,
		Currency:  asset.ParseCurrency(m.Currency),
		Tags:      []string{},
		Metadata:  asset.EmptyMetadata,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if m.Description.Valid {
		desc := m.Description.String
		a.Description = &desc
	}
	if m.Tags != "" {
		if err := json.Unmarshal([]byte(m.Tags), &a.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags of %s: %w", m.ID, err)
		}
	}
	if m.Metadata != "" && json.Valid([]byte(m.Metadata)) {
		a.Metadata = json.RawMessage(m.Metadata)
	}
	return a, nil
}
