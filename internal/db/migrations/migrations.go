// Package migrations embeds goose migrations for every supported storage driver.
package migrations

import "embed"

// FS holds migrations under postgres/ and sqlite/.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Directories inside FS per goose dialect.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
