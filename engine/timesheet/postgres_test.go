package timesheet_test

import (
	"context"
	"testing"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/timesheet"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_Create(t *testing.T) {
	t.Run("Should insert a manual entry", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := timesheet.NewPostgresRepository(mockPool)
		end := "16:00"
		entry := &timesheet.Entry{
			ID:        core.MustNewID(),
			ProjectID: core.MustNewID(),
			UserID:    core.MustNewID(),
			WorkDate:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			StartTime: "08:00",
			EndTime:   &end,
			Minutes:   480,
			Notes:     "site prep",
			CreatedBy: core.MustNewID(),
			CreatedAt: time.Now().UTC(),
		}
		mockPool.ExpectExec("INSERT INTO project_time_entries").
			WithArgs(
				entry.ID, entry.ProjectID, entry.UserID, entry.WorkDate,
				entry.StartTime, entry.EndTime, entry.Minutes, entry.Notes,
				entry.CreatedBy, entry.CreatedAt, entry.SourceAttendanceID,
				entry.IsApproved, entry.ApprovedAt, entry.ApprovedBy,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		err = repo.Create(context.Background(), entry)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_GetByID(t *testing.T) {
	entryColumns := []string{
		"id", "project_id", "user_id", "work_date", "start_time", "end_time",
		"minutes", "notes", "created_by", "created_at", "source_attendance_id",
		"is_approved", "approved_at", "approved_by",
	}
	t.Run("Should fetch an entry by id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := timesheet.NewPostgresRepository(mockPool)
		entryID := core.MustNewID()
		now := time.Now().UTC()
		var nilID *core.ID
		var nilTime *time.Time
		var nilString *string
		rows := mockPool.NewRows(entryColumns).
			AddRow(entryID, core.MustNewID(), core.MustNewID(),
				time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "08:00", nilString,
				240, "", core.MustNewID(), now, nilID, false, nilTime, nilID)
		mockPool.ExpectQuery("SELECT (.+) FROM project_time_entries WHERE id = \\$1").
			WithArgs(entryID).
			WillReturnRows(rows)
		result, err := repo.GetByID(context.Background(), entryID)
		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, entryID, result.ID)
		assert.Equal(t, 240, result.Minutes)
		assert.True(t, result.IsManual())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return ErrNotFound for a missing id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := timesheet.NewPostgresRepository(mockPool)
		entryID := core.MustNewID()
		mockPool.ExpectQuery("SELECT (.+) FROM project_time_entries WHERE id = \\$1").
			WithArgs(entryID).
			WillReturnError(pgx.ErrNoRows)
		result, err := repo.GetByID(context.Background(), entryID)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, timesheet.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_Update(t *testing.T) {
	t.Run("Should return ErrNotFound when no row matches", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := timesheet.NewPostgresRepository(mockPool)
		entry := &timesheet.Entry{ID: core.MustNewID(), StartTime: "08:00", Minutes: 60}
		mockPool.ExpectExec("UPDATE project_time_entries").
			WithArgs(
				entry.StartTime, entry.EndTime, entry.Minutes, entry.Notes,
				entry.SourceAttendanceID, entry.IsApproved, entry.ApprovedAt,
				entry.ApprovedBy, entry.ID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err = repo.Update(context.Background(), entry)
		assert.ErrorIs(t, err, timesheet.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_Delete(t *testing.T) {
	t.Run("Should delete an entry", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := timesheet.NewPostgresRepository(mockPool)
		entryID := core.MustNewID()
		mockPool.ExpectExec("DELETE FROM project_time_entries").
			WithArgs(entryID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		err = repo.Delete(context.Background(), entryID)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_SumByProject(t *testing.T) {
	t.Run("Should aggregate minutes per project", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := timesheet.NewPostgresRepository(mockPool)
		projectID := core.MustNewID()
		from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
		rows := mockPool.NewRows([]string{"project_id", "minutes", "entries"}).
			AddRow(projectID, 960, 3)
		mockPool.ExpectQuery("SELECT project_id, COALESCE").
			WithArgs(from, to).
			WillReturnRows(rows)
		totals, err := repo.SumByProject(context.Background(), from, to)
		assert.NoError(t, err)
		require.Len(t, totals, 1)
		assert.Equal(t, projectID, totals[0].ProjectID)
		assert.Equal(t, 960, totals[0].Minutes)
		assert.Equal(t, 3, totals[0].Entries)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresLogRepository_Append(t *testing.T) {
	t.Run("Should insert a change log row", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := timesheet.NewPostgresLogRepository(mockPool)
		entryID := core.MustNewID()
		row := &timesheet.Log{
			ID:        core.MustNewID(),
			ProjectID: core.MustNewID(),
			EntryID:   &entryID,
			Action:    "CREATE",
			ActorID:   core.MustNewID(),
			Details:   map[string]any{"minutes": 480},
			CreatedAt: time.Now().UTC(),
		}
		mockPool.ExpectExec("INSERT INTO project_time_entry_logs").
			WithArgs(row.ID, row.ProjectID, row.EntryID, row.Action, row.ActorID,
				row.Details, row.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		err = repo.Append(context.Background(), row)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
