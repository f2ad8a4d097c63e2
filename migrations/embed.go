// Package migrations embeds SQL migration files for database schema management.
// Each supported dialect keeps its own directory of golang-migrate files.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
