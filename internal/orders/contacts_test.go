package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactInsertSkipsKnownEmails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := &ContactRepo{DB: mock}

	cs := []Contact{
		{ID: "c1", FirstName: "Nadia", LastName: "Alaoui", Email: "nadia@example.com", CreatedAt: at},
		{ID: "c2", FirstName: "Omar", LastName: "Tazi", Email: "NADIA@example.com", CreatedAt: at},
	}

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs("c1", "Nadia", "Alaoui", "nadia@example.com", "", "", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`ON CONFLICT \(lower\(email\)\)`).
		WithArgs("c2", "Omar", "Tazi", "NADIA@example.com", "", "", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := repo.Insert(context.Background(), cs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactInsertRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := &ContactRepo{DB: mock}

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`INSERT INTO contacts`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = repo.Insert(context.Background(), []Contact{{ID: "c1", FirstName: "A", LastName: "B", CreatedAt: at}})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateContact(t *testing.T) {
	assert.NoError(t, ValidateContact(Contact{FirstName: "A", LastName: "B"}))
	err := ValidateContact(Contact{FirstName: "A", Email: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lastname failed required")
	assert.Contains(t, err.Error(), "email failed email")
}
