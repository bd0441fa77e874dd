package repository

import (
	"strings"
	"time"

	"github.com/nimasrn/ar-collections/pkg/pg"
)

// likeOperator picks ILIKE on Postgres, where the trigram indexes serve it.
// SQLite's LIKE is already case insensitive for ASCII.
func likeOperator(db *pg.DB) string {
	if db.IsPostgres() {
		return "ILIKE"
	}
	return "LIKE"
}

// likeClause builds "<column> LIKE ? ESCAPE '\'" for use with likePattern.
func likeClause(db *pg.DB, column string) string {
	return column + " " + likeOperator(db) + " ? ESCAPE '\\'"
}

// likePattern escapes the LIKE wildcards in a user supplied search term.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(term)) + "%"
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
