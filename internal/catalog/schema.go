// Package catalog provides a SQLite-backed metadata source.
package catalog

// CreatePackagesTableSQL creates the table holding one row per descriptor.
// A descriptor is keyed by (name, version), the same key the filesystem
// cache derives its path from; package_id is the descriptor's stable id.
const CreatePackagesTableSQL = `
CREATE TABLE IF NOT EXISTS packages (
    name TEXT NOT NULL,
    version TEXT NOT NULL,
    package_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    keywords TEXT NOT NULL DEFAULT '',
    descriptor_json TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (name, version)
)`

// CreatePackagesIndexesSQL creates lookup indexes.
var CreatePackagesIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_packages_id ON packages(package_id)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_updated ON packages(updated_at)`,
}

// AllSchemaSQL returns every statement needed to initialize the catalog.
func AllSchemaSQL() []string {
	statements := []string{CreatePackagesTableSQL}
	return append(statements, CreatePackagesIndexesSQL...)
}
