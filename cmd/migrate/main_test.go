package main

import (
	"regexp"
	"testing"
	"testing/fstest"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractGooseUp(t *testing.T) {
	in := "-- +goose Up\nCREATE TABLE a(x int);\n-- +goose Down\nDROP TABLE a;\n"
	assert.Equal(t, "CREATE TABLE a(x int);\n", extractGooseUp(in))
	assert.Equal(t, "SELECT 1", extractGooseUp("SELECT 1"))
}

func TestMigrate_SkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	fsys := fstest.MapFS{
		"migrations/0001_a.sql": {Data: []byte("-- +goose Up\nCREATE TABLE a(x int);\n-- +goose Down\nDROP TABLE a;")},
		"migrations/0002_b.sql": {Data: []byte("CREATE TABLE b(x int); CREATE INDEX b_x ON b(x);")},
	}

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM schema_migrations`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_a.sql"))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE b(x int)`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX b_x ON b(x)`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations`)).
		WithArgs("0002_b.sql", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))

	n, err := migrate(sqlx.NewDb(db, "sqlmock"), fsys)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	b, err := migrations.ReadFile("migrations/0001_wallet_identities.sql")
	require.NoError(t, err)
	assert.Contains(t, extractGooseUp(string(b)), "wallet_identities")
	assert.NotContains(t, extractGooseUp(string(b)), "DROP TABLE")
}
