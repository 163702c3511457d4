// Package migrations embeds the SQL migrations for the messaging service.
package migrations

import "embed"

// Files contains all .sql files from this directory (order matters: 001, 002, ...).
//
//go:embed *.sql
var Files embed.FS
