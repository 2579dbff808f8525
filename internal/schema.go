package internal

import (
	"fmt"
	"strings"

	"github.com/AZ-204-Projects/event-relay/internal/drivers/mysql"
	"github.com/AZ-204-Projects/event-relay/internal/drivers/postgres"
	"github.com/AZ-204-Projects/event-relay/internal/drivers/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

func getSchema(driverName, deadLetterTable string) ([]string, error) {
	switch driverName {
	case "mysql":
		return mysql.Schema(deadLetterTable), nil
	case "sqlite3":
		return sqlite3.Schema(deadLetterTable), nil
	case "pq":
		fallthrough
	case "pgx":
		fallthrough
	case "postgres":
		return postgres.Schema(deadLetterTable), nil
	default:
		return nil, fmt.Errorf("driver '%s' not supported", driverName)
	}
}

// CreateSchema creates the message and dead-letter tables if they don't
// already exist. Statements run in a single transaction, so a failure leaves
// the database untouched on engines with transactional DDL.
func CreateSchema(db *sqlx.DB, deadLetterTable string) error {
	log.Debug().Str("dead_letter_table", deadLetterTable).Msg("creating schema")
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %s", err)
	}
	defer tx.Rollback()
	schema, err := getSchema(db.DriverName(), deadLetterTable)
	if err != nil {
		return fmt.Errorf("error retrieving schema: %s", err)
	}
	for _, stmt := range schema {
		_, err := tx.Exec(stmt)
		if err != nil {
			return fmt.Errorf("failed to exec stmt %s: %s", strings.Split(stmt, "(")[0], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %s", err)
	}
	log.Debug().Msg("schema created")
	return nil
}

// LockClause returns the row-locking suffix for the driver's candidate
// SELECT. SQLite serializes writers at the connection level, so it takes no
// clause.
func LockClause(driverName string) string {
	switch driverName {
	case "sqlite3":
		return ""
	default:
		return " FOR UPDATE SKIP LOCKED"
	}
}
