package migrator

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/postgres"
)

func postgresURL(connStr string) (*url.URL, error) {
	if connStr == "" {
		return nil, errors.New("connection string is required")
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	return u, nil
}

// waitForPostgres gives a database container started alongside the
// collector a minute to accept connections.
func waitForPostgres(db *dbmate.DB) {
	db.WaitBefore = true
	db.WaitInterval = time.Second
	db.WaitTimeout = time.Minute
}
