// Package migrations embeds the linear schema history applied at startup.
package migrations

import "embed"

// FS holds the golang-migrate up/down pairs.
//
//go:embed *.sql
var FS embed.FS

// Dir is the root of FS passed to the migration source.
const Dir = "."
