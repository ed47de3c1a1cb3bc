// Package migrations carries the embedded goose schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
