// Package migrations embeds the SQL schema for the relational ledger backends.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
