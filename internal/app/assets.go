package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dshills/assetplug/internal/asset"
	"github.com/dshills/assetplug/internal/plugin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// CreateAssetRequest describes a new asset. Type and Currency are parsed
// leniently; an empty Currency selects the default and an unknown Type is
// stored as "other" with the given name kept under metadata.type_label.
type CreateAssetRequest struct {
	Name        string
	Type        string
	Value       float64
	Currency    string
	Description *string
	Tags        []string
	Metadata    json.RawMessage
}

// UpdateAssetRequest describes changes to an existing asset. Nil fields
// are left unchanged.
type UpdateAssetRequest struct {
	ID          uuid.UUID
	Name        *string
	Value       *float64
	Currency    *string
	Description *string
	Tags        []string

	// SetMeta sets metadata paths (sjson syntax, e.g. "broker.name").
	// Values that parse as JSON are stored as JSON, anything else as a string.
	SetMeta map[string]string
	// DeleteMeta removes metadata paths.
	DeleteMeta []string
	// Note is attached to the value_change transaction recorded when
	// Value changes.
	Note string
}

// TransactionRequest moves an asset to a new value and records why.
type TransactionRequest struct {
	AssetID uuid.UUID
	Type    string
	// Value is the asset value after the transaction.
	Value float64
	Note  string
}

// CreateAsset stores a new asset and broadcasts AssetCreated.
func (a *App) CreateAsset(ctx context.Context, req CreateAssetRequest) (*asset.Asset, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAsset)
	}
	if err := checkValue(req.Value); err != nil {
		return nil, err
	}

	as := asset.New(name, asset.ParseType(req.Type), req.Value).
		WithCurrency(asset.ParseCurrency(req.Currency))
	if req.Description != nil {
		as.WithDescription(*req.Description)
	}
	if req.Tags != nil {
		as.WithTags(cleanTags(req.Tags))
	}
	if len(req.Metadata) > 0 {
		if !gjson.ValidBytes(req.Metadata) || !gjson.ParseBytes(req.Metadata).IsObject() {
			return nil, fmt.Errorf("%w: metadata must be a JSON object", ErrInvalidAsset)
		}
		as.WithMetadata(req.Metadata)
	}
	as.WithTypeLabel(asset.CustomTypeLabel(req.Type))

	if err := a.store.Create(ctx, as); err != nil {
		return nil, NewOperationError("create asset", as.Name, err)
	}
	a.metrics.RecordCreated()
	a.logger.Info("asset created", "id", as.ID, "name", as.Name, "type", as.Type)

	a.broadcast(plugin.AssetCreated(as.Clone()))
	return as, nil
}

// UpdateAsset applies req to a stored asset and broadcasts AssetUpdated.
func (a *App) UpdateAsset(ctx context.Context, req UpdateAssetRequest) (*asset.Asset, error) {
	as, err := a.store.Get(ctx, req.ID)
	if err != nil {
		return nil, NewOperationError("update asset", req.ID.String(), err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidAsset)
		}
		as.Name = name
	}
	var change *asset.Transaction
	if req.Value != nil {
		if err := checkValue(*req.Value); err != nil {
			return nil, err
		}
		if *req.Value != as.Value {
			change = asset.NewTransaction(as.ID, asset.TxValueChange, as.Value, *req.Value).WithNote(req.Note)
		}
		as.SetValue(*req.Value)
	}
	if req.Currency != nil {
		as.WithCurrency(asset.ParseCurrency(*req.Currency))
	}
	if req.Description != nil {
		as.WithDescription(*req.Description)
	}
	if req.Tags != nil {
		as.WithTags(cleanTags(req.Tags))
	}
	if len(req.SetMeta) > 0 || len(req.DeleteMeta) > 0 {
		meta, err := editMetadata(as.Metadata, req.SetMeta, req.DeleteMeta)
		if err != nil {
			return nil, err
		}
		as.WithMetadata(meta)
	}
	as.Touch()

	if change != nil {
		err = a.store.UpdateWithTransaction(ctx, as, change)
	} else {
		err = a.store.Update(ctx, as)
	}
	if err != nil {
		return nil, NewOperationError("update asset", req.ID.String(), err)
	}
	a.metrics.RecordUpdated()
	a.logger.Info("asset updated", "id", as.ID, "name", as.Name)

	a.broadcast(plugin.AssetUpdated(as.Clone()))
	return as, nil
}

// AddTransaction sets the asset to req.Value, records the change in its
// history and broadcasts AssetUpdated.
func (a *App) AddTransaction(ctx context.Context, req TransactionRequest) (*asset.Transaction, error) {
	typ, ok := asset.ParseTransactionType(req.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidAsset, req.Type)
	}
	if err := checkValue(req.Value); err != nil {
		return nil, err
	}

	as, err := a.store.Get(ctx, req.AssetID)
	if err != nil {
		return nil, NewOperationError("add transaction", req.AssetID.String(), err)
	}
	tx := asset.NewTransaction(as.ID, typ, as.Value, req.Value).WithNote(req.Note)
	as.SetValue(req.Value)

	if err := a.store.UpdateWithTransaction(ctx, as, tx); err != nil {
		return nil, NewOperationError("add transaction", req.AssetID.String(), err)
	}
	a.metrics.RecordUpdated()
	a.logger.Info("transaction recorded", "asset", as.ID, "type", tx.Type, "before", tx.AmountBefore, "after", tx.AmountAfter)

	a.broadcast(plugin.AssetUpdated(as.Clone()))
	return tx, nil
}

// Transactions returns the history of an existing asset, newest first.
func (a *App) Transactions(ctx context.Context, id uuid.UUID) ([]*asset.Transaction, error) {
	if _, err := a.store.Get(ctx, id); err != nil {
		return nil, NewOperationError("list transactions", id.String(), err)
	}
	txs, err := a.store.Transactions(ctx, id)
	if err != nil {
		return nil, NewOperationError("list transactions", id.String(), err)
	}
	return txs, nil
}

// DeleteAsset removes an asset and its history and broadcasts AssetDeleted.
func (a *App) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	if err := a.store.Delete(ctx, id); err != nil {
		return NewOperationError("delete asset", id.String(), err)
	}
	a.metrics.RecordDeleted()
	a.logger.Info("asset deleted", "id", id)

	a.broadcast(plugin.AssetDeleted(id))
	return nil
}

// Assets returns every asset, newest first.
func (a *App) Assets(ctx context.Context) ([]*asset.Asset, error) {
	assets, err := a.store.List(ctx)
	if err != nil {
		return nil, NewOperationError("list assets", "", err)
	}
	return assets, nil
}

// AssetsByType returns the assets of one type, newest first. The type name
// is parsed like CreateAssetRequest.Type.
func (a *App) AssetsByType(ctx context.Context, typ string) ([]*asset.Asset, error) {
	t := asset.ParseType(typ)
	assets, err := a.store.ListByType(ctx, t)
	if err != nil {
		return nil, NewOperationError("list assets", string(t), err)
	}
	return assets, nil
}

// Asset returns one asset.
func (a *App) Asset(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	as, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, NewOperationError("get asset", id.String(), err)
	}
	return as, nil
}

// Search returns assets matching every token of q.
func (a *App) Search(ctx context.Context, q string) ([]*asset.Asset, error) {
	assets, err := a.store.Search(ctx, q)
	if err != nil {
		return nil, NewOperationError("search assets", q, err)
	}
	return assets, nil
}

// Summary totals every stored asset.
func (a *App) Summary(ctx context.Context) (asset.Summary, error) {
	sum, err := a.store.Summary(ctx)
	if err != nil {
		return asset.Summary{}, NewOperationError("summarize assets", "", err)
	}
	return sum, nil
}

func checkValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: value must be a finite number", ErrInvalidAsset)
	}
	return nil
}

// cleanTags trims tags and drops empty ones and duplicates, keeping order.
func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// editMetadata applies path edits to a metadata document.
func editMetadata(doc json.RawMessage, set map[string]string, del []string) (json.RawMessage, error) {
	out := string(doc)
	if out == "" || !gjson.Valid(out) {
		out = string(asset.EmptyMetadata)
	}

	var err error
	for _, path := range del {
		out, err = sjson.Delete(out, path)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata path %q: %w", ErrInvalidAsset, path, err)
		}
	}
	for path, value := range set {
		if path == "" {
			return nil, fmt.Errorf("%w: empty metadata path", ErrInvalidAsset)
		}
		if gjson.Valid(value) {
			out, err = sjson.SetRaw(out, path, value)
		} else {
			out, err = sjson.Set(out, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: metadata path %q: %w", ErrInvalidAsset, path, err)
		}
	}
	return json.RawMessage(out), nil
}
