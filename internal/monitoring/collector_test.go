package monitoring

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorPersistsMeasuredSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	collector := NewCollector(NewService(db, nil), 0, nil)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"active", "handled", "hit_rate", "agents"}).
			AddRow(5, 120, 0.75, 2))
	mock.ExpectExec("INSERT INTO metrics_snapshots").
		WithArgs(5, 120, 0.75, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = collector.collect(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
