package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"

	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// SQLiteCatalog implements storage.MetadataSource on a SQLite database.
// Filtering by name and ordering happen in SQL; pagination is left to callers.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)
	logger *zap.Logger

	upsertStmt *sql.Stmt
}

// NewCatalog opens (and creates if needed) the catalog at dbPath.
func NewCatalog(dbPath string, logger *zap.Logger) (*SQLiteCatalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	catalog := &SQLiteCatalog{
		db:     db,
		dbPath: dbPath,
		logger: logger.With(zap.String("catalog", dbPath)),
	}

	// Schema first, so the read pool never sees a missing table
	if err := catalog.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
	}

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	catalog.readDB = readDB

	upsert, err := db.Prepare(`
		INSERT INTO packages (
			name, version, package_id, title, description, keywords,
			descriptor_json, fingerprint, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET
			package_id = excluded.package_id,
			title = excluded.title,
			description = excluded.description,
			keywords = excluded.keywords,
			descriptor_json = excluded.descriptor_json,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at
		WHERE packages.fingerprint != excluded.fingerprint`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("catalog: failed to prepare upsert statement: %w", err)
	}
	catalog.upsertStmt = upsert

	return catalog, nil
}

// initSchema creates all required tables and indexes.
func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// List returns descriptors whose name contains filter.Query (ignoring case),
// ordered by name and version.
func (c *SQLiteCatalog) List(ctx context.Context, sort model.SortSettings, filter model.FilterSettings, _ model.PaginationSettings, _ model.FieldSettings) ([]*datapackage.Package, error) {
	query := `SELECT name, version, descriptor_json FROM packages`
	var args []interface{}
	if filter.Query != "" {
		query += ` WHERE instr(lower(name), ?) > 0`
		args = append(args, strings.ToLower(filter.Query))
	}
	query += ` ORDER BY name, version`

	pkgs, err := c.queryPackages(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	model.ApplySort(pkgs, sort)
	return pkgs, nil
}

// Get returns the first descriptor, by name then version, whose name
// contains query. It returns nil, nil when nothing matches.
func (c *SQLiteCatalog) Get(ctx context.Context, query string, _ model.FilterSettings) (*datapackage.Package, error) {
	pkgs, err := c.queryPackages(ctx, `
		SELECT name, version, descriptor_json FROM packages
		WHERE instr(name, ?) > 0
		ORDER BY name, version
		LIMIT 1`, query)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, nil
	}
	return pkgs[0], nil
}

// Search matches query against name, title, description and keywords,
// ignoring case.
func (c *SQLiteCatalog) Search(ctx context.Context, query string, sort model.SortSettings, _ model.FilterSettings, _ model.PaginationSettings) ([]*datapackage.Package, error) {
	q := strings.ToLower(query)
	pkgs, err := c.queryPackages(ctx, `
		SELECT name, version, descriptor_json FROM packages
		WHERE instr(lower(name), ?1) > 0
		   OR instr(lower(title), ?1) > 0
		   OR instr(lower(description), ?1) > 0
		   OR instr(keywords, ?1) > 0
		ORDER BY name, version`, q)
	if err != nil {
		return nil, err
	}
	model.ApplySort(pkgs, sort)
	return pkgs, nil
}

// Put inserts or replaces the descriptor stored under its name and version.
// Rows whose content did not change are left untouched.
func (c *SQLiteCatalog) Put(ctx context.Context, pkg *datapackage.Package) error {
	id, err := storage.CheckStorable(pkg)
	if err != nil {
		return err
	}

	data, err := pkg.MarshalJSON()
	if err != nil {
		return nebulaerrors.NewStorageError(nebulaerrors.CodeWriteFailed, "failed to encode descriptor", err)
	}

	keywords := make([]string, 0, len(pkg.Keywords()))
	for _, k := range pkg.Keywords() {
		keywords = append(keywords, strings.ToLower(k))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.upsertStmt.ExecContext(ctx,
		pkg.Name(), pkg.Version(), id.String(),
		pkg.Title(), pkg.Description(), strings.Join(keywords, "\n"),
		string(data), fmt.Sprintf("%016x", murmur3.Sum64(data)), time.Now().UnixNano(),
	)
	if err != nil {
		return nebulaerrors.NewStorageError(nebulaerrors.CodeWriteFailed, "failed to store descriptor", err)
	}

	c.logger.Debug("stored descriptor",
		zap.String("name", pkg.Name()),
		zap.String("version", pkg.Version()),
	)
	return nil
}

// Delete removes the descriptor of name at version. Deleting a missing
// descriptor is not an error.
func (c *SQLiteCatalog) Delete(ctx context.Context, name, version string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM packages WHERE name = ? AND version = ?`, name, version); err != nil {
		return nebulaerrors.NewStorageError(nebulaerrors.CodeDeleteFailed, "failed to delete descriptor", err)
	}
	return nil
}

// Count returns the number of stored descriptors.
func (c *SQLiteCatalog) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&n); err != nil {
		return 0, nebulaerrors.NewStorageError(nebulaerrors.CodeReadFailed, "failed to count descriptors", err)
	}
	return n, nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.upsertStmt != nil {
		c.upsertStmt.Close()
	}
	readErr := c.readDB.Close()
	if err := c.db.Close(); err != nil {
		return err
	}
	return readErr
}

// queryPackages runs a query returning (name, version, descriptor_json) rows.
// Rows that no longer parse are logged and skipped.
func (c *SQLiteCatalog) queryPackages(ctx context.Context, query string, args ...interface{}) ([]*datapackage.Package, error) {
	rows, err := c.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nebulaerrors.NewStorageError(nebulaerrors.CodeReadFailed, "failed to query catalog", err)
	}
	defer rows.Close()

	var pkgs []*datapackage.Package
	for rows.Next() {
		var name, version, raw string
		if err := rows.Scan(&name, &version, &raw); err != nil {
			return nil, nebulaerrors.NewStorageError(nebulaerrors.CodeReadFailed, "failed to scan catalog row", err)
		}
		pkg, err := datapackage.Parse([]byte(raw))
		if err != nil {
			c.logger.Warn("skipping invalid catalog row",
				zap.String("name", name),
				zap.String("version", version),
				zap.Error(err),
			)
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, nebulaerrors.NewStorageError(nebulaerrors.CodeReadFailed, "failed to iterate catalog rows", err)
	}
	return pkgs, nil
}

var _ storage.MetadataSource = (*SQLiteCatalog)(nil)
