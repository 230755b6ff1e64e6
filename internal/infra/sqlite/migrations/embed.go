// Package migrations holds the embedded SQLite schema.
package migrations

import "embed"

// FS contains the migrations applied in file name order.
//
//go:embed *.sql
var FS embed.FS
