// Package migrations embeds the catalog schema for each supported dialect.
package migrations

import "embed"

// FS holds one goose migration directory per dialect: sqlite and postgres.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
