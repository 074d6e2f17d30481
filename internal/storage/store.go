// Package storage persists assets, their transaction history and plugin
// state through bun on SQLite, PostgreSQL or MySQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/assetplug/internal/asset"
	"github.com/dshills/assetplug/internal/logging"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	// SQL drivers for the server backends.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Supported database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

// ErrNotFound is returned when no asset has the requested id.
var ErrNotFound = errors.New("asset not found")

// ErrUnsupportedType is returned for an unknown database type.
var ErrUnsupportedType = errors.New("unsupported database type")

// sqlOpenFunc allows tests to override database opening behavior.
var sqlOpenFunc = sql.Open

// Store is the asset store.
type Store struct {
	db     *bun.DB
	dbType string
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open connects to the database and creates the schema if missing.
// For SQLite the parent directory of a file DSN is created.
func Open(ctx context.Context, dbType, dsn string, opts ...Option) (*Store, error) {
	driverName, err := driverFor(dbType)
	if err != nil {
		return nil, err
	}

	s := &Store{dbType: dbType, logger: logging.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if dbType == TypeSQLite {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite in-memory databases are per connection; keep exactly one.
	if dbType == TypeSQLite && isMemoryDSN(dsn) {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	}

	s.db = createBunDB(sqlDB, dbType)

	if err := s.initSchema(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug("database opened", "type", dbType, "driver", driverName, "elapsed", time.Since(start))
	return s, nil
}

func driverFor(dbType string) (string, error) {
	switch dbType {
	case TypeSQLite:
		return "sqlite", nil
	case TypePostgres:
		// The pgx stdlib registers driver name "pgx".
		return "pgx", nil
	case TypeMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, dbType)
	}
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case TypePostgres:
		return bun.NewDB(sqlDB, pgdialect.New())
	case TypeMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

func ensureSQLiteDir(dsn string) error {
	if isMemoryDSN(dsn) {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, model := range []any{(*assetModel)(nil), (*pluginStateModel)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	if _, err := s.db.NewCreateTable().
		Model((*transactionModel)(nil)).
		IfNotExists().
		ForeignKey("(asset_id) REFERENCES assets (id) ON DELETE CASCADE").
		Exec(ctx); err != nil {
		return err
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS.
	if s.dbType == TypeMySQL {
		return nil
	}
	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*assetModel)(nil), "idx_assets_type", "asset_type"},
		{(*assetModel)(nil), "idx_assets_created", "created_at"},
		{(*transactionModel)(nil), "idx_transactions_asset", "asset_id"},
		{(*transactionModel)(nil), "idx_transactions_timestamp", "timestamp"},
	}
	for _, idx := range indexes {
		if _, err := s.db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Type returns the database type.
func (s *Store) Type() string {
	return s.dbType
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new asset.
func (s *Store) Create(ctx context.Context, a *asset.Asset) error {
	m, err := assetToModel(a)
	if err != nil {
		return err
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("inserting asset %s: %w", a.ID, err)
	}
	return nil
}

// Get returns the asset with id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	var m assetModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", id.String()).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading asset %s: %w", id, err)
	}
	return modelToAsset(&m)
}

// Update overwrites every column of an existing asset.
func (s *Store) Update(ctx context.Context, a *asset.Asset) error {
	m, err := assetToModel(a)
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("updating asset %s: %w", a.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}
	return nil
}

// Delete removes the asset with id together with its transactions.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := deleteTransactions(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*assetModel)(nil)).Where("id = ?", id.String()).Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting asset %s: %w", id, err)
	}
	return nil
}

// List returns all assets, newest first.
func (s *Store) List(ctx context.Context) ([]*asset.Asset, error) {
	var rows []assetModel
	if err := s.db.NewSelect().Model(&rows).OrderExpr("created_at DESC, id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	return modelsToAssets(rows)
}

// ListByType returns the assets of one type, newest first.
func (s *Store) ListByType(ctx context.Context, t asset.Type) ([]*asset.Asset, error) {
	var rows []assetModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("asset_type = ?", string(t)).
		OrderExpr("created_at DESC, id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s assets: %w", t, err)
	}
	return modelsToAssets(rows)
}

// Search returns assets whose name, description or tags contain every
// whitespace separated token of q, case-insensitively. An empty query
// matches everything.
func (s *Store) Search(ctx context.Context, q string) ([]*asset.Asset, error) {
	var rows []assetModel
	qb := s.db.NewSelect().Model(&rows)
	for _, tok := range TokenizeSearchQuery(q) {
		like := "%" + tok + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ? OR LOWER(COALESCE(tags, '')) LIKE ?)", like, like, like)
	}
	if err := qb.OrderExpr("created_at DESC, id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("searching assets: %w", err)
	}
	return modelsToAssets(rows)
}

// Summary totals every stored asset.
func (s *Store) Summary(ctx context.Context) (asset.Summary, error) {
	assets, err := s.List(ctx)
	if err != nil {
		return asset.Summary{}, err
	}
	return asset.Summarize(assets), nil
}

func modelsToAssets(rows []assetModel) ([]*asset.Asset, error) {
	out := make([]*asset.Asset, 0, len(rows))
	for i := range rows {
		a, err := modelToAsset(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// TokenizeSearchQuery splits a query into lower-cased tokens.
// Returns nil for empty input.
func TokenizeSearchQuery(q string) []string {
	parts := strings.Fields(strings.TrimSpace(q))
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.ToLower(p))
	}
	return out
}
