package orders

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upMigration = "../postgres/migrations/000001_init.up.sql"

var (
	createTableRe = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\n\);`)
	insertRe      = regexp.MustCompile(`INSERT INTO (\w+)\(([^)]*)\)`)
	identRe       = regexp.MustCompile(`[a-z_]+`)
)

// schemaColumns maps table -> column set from the initial migration.
func schemaColumns(t *testing.T) map[string]map[string]bool {
	t.Helper()
	raw, err := os.ReadFile(upMigration)
	require.NoError(t, err)

	tables := map[string]map[string]bool{}
	for _, m := range createTableRe.FindAllStringSubmatch(string(raw), -1) {
		cols := map[string]bool{}
		for _, line := range strings.Split(m[2], "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 || strings.ToUpper(fields[0]) == fields[0] {
				continue // constraints such as UNIQUE (...)
			}
			cols[fields[0]] = true
		}
		tables[m[1]] = cols
	}
	require.NotEmpty(t, tables)
	return tables
}

func TestRepoInsertsMatchSchema(t *testing.T) {
	tables := schemaColumns(t)
	for _, file := range []string{"repo.go", "repo_stock.go"} {
		src, err := os.ReadFile(file)
		require.NoError(t, err)
		inserts := insertRe.FindAllStringSubmatch(string(src), -1)
		require.NotEmpty(t, inserts, file)
		for _, m := range inserts {
			cols, ok := tables[m[1]]
			require.True(t, ok, "%s: unknown table %s", file, m[1])
			for _, c := range strings.Split(m[2], ",") {
				c = strings.TrimSpace(c)
				assert.True(t, cols[c], "%s: %s.%s not in schema", file, m[1], c)
			}
		}
	}
}

func TestOrderColumnsMatchSchema(t *testing.T) {
	cols := schemaColumns(t)["orders"]
	skip := map[string]bool{"text": true, "coalesce": true}
	n := 0
	for _, ident := range identRe.FindAllString(orderColumns, -1) {
		if skip[ident] {
			continue
		}
		assert.True(t, cols[ident], "orders.%s not in schema", ident)
		n++
	}
	assert.Equal(t, 19, n)
}
