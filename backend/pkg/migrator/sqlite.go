package migrator

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/amacneil/dbmate/v2/pkg/driver/sqlite"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteURL turns a file path into the sqlite: URL dbmate expects. Migrating
// an in-memory database would be lost as soon as dbmate closes it.
func sqliteURL(path string) (*url.URL, error) {
	if path == "" {
		return nil, errors.New("connection string is required")
	}

	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		return nil, errors.New("in-memory databases are not supported")
	}

	u, err := url.Parse("sqlite:" + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	return u, nil
}
