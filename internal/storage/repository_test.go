package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbot/internal/core"
	"budgetbot/internal/ledger"
)

func newRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "budget.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func seedRef() core.Reference {
	return core.Reference{
		Categories: []core.Category{
			{Name: "Rent", Limit: 2000, Owner: core.OwnerShared},
			{Name: "Food", Limit: 1000},
		},
		Persons: []core.Person{
			{Identity: 1, Name: "Олег", Limit: 5000},
			{Identity: 2, Name: "Марта", Limit: 4000},
		},
		Contributions: map[string]map[string]int64{
			"Олег":  {"Rent": 1200},
			"Марта": {"Rent": 800},
		},
		ContributionTotals: map[string]int64{"Олег": 1200, "Марта": 800},
	}
}

func TestMigrationsApplied(t *testing.T) {
	_, path := newRepo(t)
	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), v)

	// Re-running is a no-op.
	require.NoError(t, RunMigrations(path))
}

func TestLedgerBehavesLikeASheet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	rows, err := repo.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.Header, rows[0])

	require.NoError(t, repo.Append(ctx, []string{"2025-03-01 10:00", "Олег", "Food", "10", "", "0", "202503"}))
	require.NoError(t, repo.Append(ctx, []string{"2025-03-01 11:00", "Марта", "Rent", "20", "x", "0", "202503", "12", "8"}))
	require.NoError(t, repo.Append(ctx, []string{"2025-03-01 12:00", "Олег", "Food", "30", "", "0", "202503"}))

	rows, err = repo.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"2025-03-01 11:00", "Марта", "Rent", "20", "x", "0", "202503", "12", "8"}, rows[2])
	assert.Len(t, rows[1], 7)

	require.NoError(t, repo.DeleteAt(ctx, 3))
	rows, err = repo.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "10", rows[1][3])
	assert.Equal(t, "30", rows[2][3])

	assert.Error(t, repo.DeleteAt(ctx, 1))
	assert.Error(t, repo.DeleteAt(ctx, 9))
}

func TestAppendRejectsNonPositiveAmount(t *testing.T) {
	repo, _ := newRepo(t)
	err := repo.Append(context.Background(), []string{"2025-03-01 10:00", "Олег", "Food", "0"})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestSeedAndLoadReference(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	seeded, err := repo.SeedReference(ctx, seedRef())
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = repo.SeedReference(ctx, seedRef())
	require.NoError(t, err)
	assert.False(t, seeded, "second seed is skipped")

	ref, err := repo.LoadReference(ctx)
	require.NoError(t, err)
	assert.Equal(t, seedRef().Categories, ref.Categories)
	assert.Equal(t, seedRef().Persons, ref.Persons)
	assert.Equal(t, int64(800), ref.Contribution("Марта", "Rent"))
	assert.Equal(t, int64(1200), ref.ContributionTotals["Олег"])
}

func TestWriteLimits(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	_, err := repo.SeedReference(ctx, seedRef())
	require.NoError(t, err)

	require.NoError(t, repo.WriteCategoryLimit(ctx, "Food", 1500))
	require.NoError(t, repo.WritePersonLimit(ctx, "Марта", 0))
	assert.Error(t, repo.WriteCategoryLimit(ctx, "Nope", 1))

	ref, err := repo.LoadReference(ctx)
	require.NoError(t, err)
	c, _ := ref.Category("Food")
	assert.Equal(t, int64(1500), c.Limit)
	assert.Equal(t, int64(0), ref.PersonLimit("Марта"))
}

func TestScanAllQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT ts, person").WillReturnError(errors.New("disk I/O error"))

	_, err = NewWithDB(db).ScanAll(context.Background())
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAtRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM ledger").WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("DELETE FROM ledger").WithArgs(int64(42)).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err = NewWithDB(db).DeleteAt(context.Background(), 3)
	assert.ErrorContains(t, err, "locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLimitNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE categories").WithArgs(int64(5), "Nope").WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewWithDB(db).WriteCategoryLimit(context.Background(), "Nope", 5)
	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO categories").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, err = NewWithDB(db).SeedReference(context.Background(), seedRef())
	assert.ErrorContains(t, err, "constraint failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
