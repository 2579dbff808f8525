package internal

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	driverNames := []string{"mysql", "sqlite3", "postgres", "pq", "pgx"}
	for _, d := range driverNames {
		t.Run(fmt.Sprintf("driver=%s", d), func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err, "failed to create mock")

			ExpectSchema(t, mock, d, "dead_letter")

			err = CreateSchema(sqlx.NewDb(db, d), "dead_letter")
			require.NoError(t, err)
		})
	}
}

func TestCreateSchemaUnknownDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create mock")

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = CreateSchema(sqlx.NewDb(db, "oracle"), "dead_letter")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not supported")
}

func TestCreateSchemaCustomDeadLetterTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create mock")

	ExpectSchema(t, mock, "postgres", "quarantine")

	err = CreateSchema(sqlx.NewDb(db, "postgres"), "quarantine")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockClause(t *testing.T) {
	require.Equal(t, " FOR UPDATE SKIP LOCKED", LockClause("postgres"))
	require.Equal(t, " FOR UPDATE SKIP LOCKED", LockClause("mysql"))
	require.Equal(t, "", LockClause("sqlite3"))
}

func ExpectSchema(t *testing.T, mock sqlmock.Sqlmock, driverName, deadLetterTable string) {
	mock.ExpectBegin()
	schema, err := getSchema(driverName, deadLetterTable)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range schema {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
}
