package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/fuel?sslmode=disable", DriverURL("postgres://u:p@db:5432/fuel?sslmode=disable"))
	assert.Equal(t, "pgx5://db/fuel", DriverURL("postgresql://db/fuel"))
	assert.Equal(t, "pgx5://db/fuel", DriverURL("pgx5://db/fuel"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(FS(), ".")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestSchemaCarriesNaturalKeys(t *testing.T) {
	var all strings.Builder
	entries, err := fs.ReadDir(FS(), ".")
	require.NoError(t, err)
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		b, err := fs.ReadFile(FS(), e.Name())
		require.NoError(t, err)
		all.Write(b)
	}
	schema := all.String()

	for _, want := range []string{
		"UNIQUE (meter_id, reading_date)",
		"UNIQUE (tank_id, reading_date)",
		"UNIQUE (tank_id, reconciliation_date)",
		"UNIQUE (tank_id, layer_sequence)",
		"WHERE status <> 'resolved'",
	} {
		assert.Contains(t, schema, want)
	}
}
