// Package migrations embeds the PostgreSQL schema so the binary can migrate
// without a checkout of the repository.
package migrations

import "embed"

//go:embed *.up.sql *.down.sql
var FS embed.FS
