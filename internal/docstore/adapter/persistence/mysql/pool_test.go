package mysql

import (
	"context"
	"sync"
	"testing"

	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/testutil"
	apperrors "mission-control/internal/shared/errors"
	"mission-control/internal/shared/logger"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ExecuteWriteAndRead(t *testing.T) {
	ctx := context.Background()
	pool := NewPool(testutil.OpenSQLite(t), nil)

	res, err := pool.Execute(ctx, "INSERT INTO `satellites` (`name`, `status`, `altitude_km`) VALUES (?, ?, ?)", "Aqua", "Active", 705.5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.InsertID)
	assert.Equal(t, int64(1), res.AffectedRows)
	assert.Nil(t, res.Rows)

	res, err = pool.Execute(ctx, "SELECT * FROM `satellites` WHERE `id` = ?", res.InsertID)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "Aqua", row["name"])
	assert.Equal(t, 705.5, row["altitude_km"])
	assert.Nil(t, row["launch_date"])
	assert.IsType(t, "", row["created_at"])
}

func TestPool_UpdateReportsAffectedRows(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	testutil.SeedSatellites(t, db)
	pool := NewPool(db, nil)

	res, err := pool.Execute(ctx, "UPDATE `satellites` SET `status` = ? WHERE `id` = ?", "Decommissioned", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AffectedRows)

	res, err = pool.Execute(ctx, "UPDATE `satellites` SET `status` = ? WHERE `id` = ?", "Decommissioned", 999)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.AffectedRows)
}

func TestPool_SelectWithNoRowsReturnsEmptySlice(t *testing.T) {
	pool := NewPool(testutil.OpenSQLite(t), nil)

	res, err := pool.Execute(context.Background(), "SELECT * FROM `missions`")
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestPool_FailureIsLoggedOnceAndWrapped(t *testing.T) {
	base, hook := test.NewNullLogger()
	pool := NewPool(testutil.OpenSQLite(t), logger.NewLoggerFromEntry(logrus.NewEntry(base)))

	_, err := pool.Execute(context.Background(), "SELECT * FROM `widgets`")
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
	assert.Contains(t, err.Error(), "widgets")

	var storageErr *apperrors.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, storageErr.Cause.Error(), err.Error())
	assert.Equal(t, "SELECT * FROM `widgets`", storageErr.Statement)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "storage.pool", hook.LastEntry().Data["component"])
}

func TestPool_ConcurrentCallersQueue(t *testing.T) {
	ctx := context.Background()
	pool := NewPool(testutil.OpenSQLite(t), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := pool.Execute(ctx, "INSERT INTO `telemetry` (`satellite_id`, `parameter`, `value`, `timestamp`) VALUES (?, ?, ?, ?)",
				1, "battery_voltage", float64(i), model.ServerTimestamp())
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	res, err := pool.Execute(ctx, "SELECT COUNT(*) AS `n` FROM `telemetry`")
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Rows[0]["n"])
	assert.LessOrEqual(t, pool.Stats().MaxOpenConnections, 1)
}

func TestPool_Ping(t *testing.T) {
	pool := NewPool(testutil.OpenSQLite(t), nil)
	assert.NoError(t, pool.Ping(context.Background()))
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name   string
		in     interface{}
		dbType string
		want   interface{}
	}{
		{"text protocol int", []byte("42"), "BIGINT", int64(42)},
		{"unsigned int", []byte("7"), "UNSIGNED INT", int64(7)},
		{"decimal", []byte("12.50"), "DECIMAL", 12.5},
		{"varchar bytes", []byte("Open"), "VARCHAR", "Open"},
		{"datetime bytes stay text", []byte("2025-03-01 08:00:00"), "DATETIME", "2025-03-01 08:00:00"},
		{"unparsable int", []byte("n/a"), "INT", "n/a"},
		{"nil", nil, "INT", nil},
		{"int32", int32(3), "INT", int64(3)},
		{"float32", float32(1.5), "FLOAT", float64(1.5)},
		{"bool", true, "BOOLEAN", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeValue(tt.in, tt.dbType))
		})
	}
}
