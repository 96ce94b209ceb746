package migrations

import "embed"

// FS contains the framework-owned SQLite migrations.
//
//go:embed *.sql
var FS embed.FS
