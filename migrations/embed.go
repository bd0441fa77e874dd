// Package migrations embeds the goose SQL files so cmd/cli can run them from
// any working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
