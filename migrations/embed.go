// Package migrations embeds the PostgreSQL schema migrations.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var FS embed.FS

// Up returns the names of the up migrations in apply order.
func Up() ([]string, error) {
	return list(".up.sql", false)
}

// Down returns the names of the down migrations in rollback order.
func Down() ([]string, error) {
	return list(".down.sql", true)
}

func list(suffix string, reverse bool) ([]string, error) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}
	return names, nil
}
