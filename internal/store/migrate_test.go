package store

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplyMigrationsSkipsRecordedVersionsUnderLock(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	fsys := fstest.MapFS{
		"0001_init.up.sql":     {Data: []byte("CREATE TABLE a (id INT)")},
		"0001_init.down.sql":   {Data: []byte("DROP TABLE a")},
		"0002_search.up.sql":   {Data: []byte("CREATE TABLE b (id INT)")},
		"0002_search.down.sql": {Data: []byte("DROP TABLE b")},
	}

	exists := regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`)
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_lock($1)`)).
		WithArgs(migrationLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(exists).WithArgs("0001_init.up.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(exists).WithArgs("0002_search.up.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE b (id INT)`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations(version) VALUES($1)`)).
		WithArgs("0002_search.up.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_unlock($1)`)).
		WithArgs(migrationLockKey).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := ApplyMigrations(context.Background(), conn, fsys); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
