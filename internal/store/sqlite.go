package store

import (
	"database/sql"
	"net/url"

	_ "modernc.org/sqlite"
)

// connPragmas run on every new pool connection. busy_timeout is
// per-connection, and the worker and HTTP handlers write concurrently.
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

// OpenSQLite opens (or creates) the run database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
