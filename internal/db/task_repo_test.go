package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"garasiku/internal/types"
)

var testHorizon = time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)

func TestTaskRepository_ListDueMaintenanceTasks(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	feb1 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	feb10 := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	rows := newMockRows([][]any{
		{"SRV-001", "servis-berat", feb1, "pending", "Avanza", "B 1234 XY"},
		{"SRV-002", "servis-regular", feb10, "pending", "", ""},
	})

	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "FROM service s") &&
			strings.Contains(sql, "LEFT JOIN vehicles v") &&
			strings.Contains(sql, "s.schedule_date <= $2") &&
			strings.Contains(sql, "ORDER BY s.schedule_date ASC")
	}), []any{"pending", testHorizon}).Return(rows, nil)

	tasks, err := repo.ListDueMaintenanceTasks(ctx, testHorizon)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, types.MaintenanceTask{
		TicketNumber:  "SRV-001",
		Type:          types.TaskTypeServiceHeavy,
		ScheduledDate: feb1,
		Vehicle:       types.VehicleRef{Name: "Avanza", LicensePlate: "B 1234 XY"},
		Status:        types.TaskStatusPending,
	}, tasks[0])
	assert.Equal(t, "SRV-002", tasks[1].TicketNumber)
	assert.True(t, rows.closed, "rows must be closed")
	db.AssertExpectations(t)
}

func TestTaskRepository_ListDueAdministrativeTasks(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	due := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	rows := newMockRows([][]any{
		{"ADM-010", "administrasi-stnk-1", due, "pending", "Hilux", "D 88 ZZ"},
	})

	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "FROM administration a") && strings.Contains(sql, "a.due_date <= $2")
	}), []any{"pending", testHorizon}).Return(rows, nil)

	tasks, err := repo.ListDueAdministrativeTasks(ctx, testHorizon)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, types.TaskTypeSTNKAnnual, tasks[0].Type)
	assert.Equal(t, due, tasks[0].DueDate)
	assert.Equal(t, "Hilux - D 88 ZZ", tasks[0].VehicleLabel())
	db.AssertExpectations(t)
}

func TestTaskRepository_EmptyResultIsNonNil(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(nil), nil)

	tasks, err := repo.ListDueMaintenanceTasks(context.Background(), testHorizon)
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestTaskRepository_Errors(t *testing.T) {
	t.Run("query error", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewTaskRepository(db)
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(nil, errors.New("connection refused"))

		_, err := repo.ListDueMaintenanceTasks(context.Background(), testHorizon)
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	})

	t.Run("scan error", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewTaskRepository(db)
		rows := newMockRows([][]any{{"ADM-1"}})
		rows.scanErr = errors.New("cannot scan NULL into *string")
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

		_, err := repo.ListDueAdministrativeTasks(context.Background(), testHorizon)
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
		assert.True(t, rows.closed)
	})

	t.Run("iteration error", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewTaskRepository(db)
		rows := newMockRows(nil)
		rows.errVal = errors.New("conn closed mid-stream")
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

		_, err := repo.ListDueAdministrativeTasks(context.Background(), testHorizon)
		require.Error(t, err)
	})
}

func TestTaskRepository_CountDueTasks(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"pending", testHorizon}).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int) = 4
			*dest[1].(*int) = 2
			return nil
		}})

	counts, err := repo.CountDueTasks(ctx, testHorizon)
	require.NoError(t, err)
	assert.Equal(t, types.DueCounts{Maintenance: 4, Administrative: 2}, counts)
}

func TestTaskRepository_CountVehicles(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)

	db.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "FILTER (WHERE is_sold)")
	}), mock.Anything).Return(&mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int) = 12
		*dest[1].(*int) = 3
		return nil
	}})

	counts, err := repo.CountVehicles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.VehicleCounts{Active: 12, Sold: 3}, counts)

	db2 := new(mockDBTX)
	db2.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("timeout")})
	_, err = NewTaskRepository(db2).CountVehicles(context.Background())
	require.Error(t, err)
}

func TestParameterRepository_GetParameter(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewParameterRepository(db)
		db.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
			return strings.Contains(sql, `"group" = $1`)
		}), []any{"1003", "waktu-reminder"}).Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*string) = "14"
			return nil
		}})

		v, err := repo.GetParameter(context.Background(), "1003", "waktu-reminder")
		require.NoError(t, err)
		assert.Equal(t, "14", v)
	})

	t.Run("missing", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(&mockRow{scanErr: pgx.ErrNoRows})

		_, err := NewParameterRepository(db).GetParameter(context.Background(), "1003", "waktu-reminder")
		assert.ErrorIs(t, err, ErrParameterNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(&mockRow{scanErr: errors.New("permission denied for table parameter")})

		_, err := NewParameterRepository(db).GetParameter(context.Background(), "1003", "waktu-reminder")
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	})
}
