package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver with connection pragmas applied.
const DriverName = "sqlite3_factbot"

// BusyTimeoutMS is how long a writer waits for a competing lock before SQLITE_BUSY.
const BusyTimeoutMS = 5000

var pragmas = []string{
	fmt.Sprintf("PRAGMA busy_timeout = %d", BusyTimeoutMS),
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
}

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, p := range pragmas {
				if _, err := conn.Exec(p, nil); err != nil {
					return fmt.Errorf("failed to apply %q: %w", p, err)
				}
			}
			return nil
		},
	})
}
