package migrations

import (
	"io/fs"
	"path"
	"strings"
	"testing"

	"walk-sensor/backend/pkg/dialect"
)

func TestMigrationsPerDialect(t *testing.T) {
	t.Parallel()

	var counts []int

	for _, d := range []dialect.Dialect{dialect.SQLite, dialect.PostgreSQL} {
		files, err := fs.Glob(GetFS(), path.Join(d.MigrationsDir(), "*.sql"))
		if err != nil {
			t.Fatalf("Glob(%s) unexpected error: %v", d, err)
		}

		if len(files) == 0 {
			t.Fatalf("no migrations for %s", d)
		}

		for _, name := range files {
			content, err := fs.ReadFile(GetFS(), name)
			if err != nil {
				t.Fatalf("ReadFile(%s) unexpected error: %v", name, err)
			}

			if !strings.Contains(string(content), "-- migrate:up") || !strings.Contains(string(content), "-- migrate:down") {
				t.Errorf("%s is missing a migrate:up or migrate:down section", name)
			}
		}

		counts = append(counts, len(files))
	}

	if counts[0] != counts[1] {
		t.Errorf("sqlite has %d migrations, postgres has %d", counts[0], counts[1])
	}
}
