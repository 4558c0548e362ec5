package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	require.Equal(t, 1, migrations[0].version)
	require.Contains(t, migrations[0].sql, "schema_migrations")
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name     string
		files    fstest.MapFS
		versions []int
		errMsg   string
	}{
		{
			name: "orders numerically",
			files: fstest.MapFS{
				"migrations/10_later.sql": {Data: []byte("SELECT 10")},
				"migrations/2_second.sql": {Data: []byte("SELECT 2")},
				"migrations/1_first.sql":  {Data: []byte("SELECT 1")},
				"migrations/README.md":    {Data: []byte("ignored")},
			},
			versions: []int{1, 2, 10},
		},
		{
			name:   "missing version separator",
			files:  fstest.MapFS{"migrations/initial.sql": {}},
			errMsg: "name must look like",
		},
		{
			name:   "non numeric version",
			files:  fstest.MapFS{"migrations/v1_initial.sql": {}},
			errMsg: "invalid version",
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"migrations/1_a.sql": {},
				"migrations/1_b.sql": {},
			},
			errMsg: "share version 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrations, err := loadMigrations(tt.files)
			if tt.errMsg != "" {
				require.ErrorContains(t, err, tt.errMsg)
				return
			}
			require.NoError(t, err)

			versions := make([]int, 0, len(migrations))
			for _, m := range migrations {
				versions = append(versions, m.version)
			}
			require.Equal(t, tt.versions, versions)
		})
	}
}
