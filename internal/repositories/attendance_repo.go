package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/schoolmis/internal/database"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttendanceRepository stores one row per (student, day). Dates are DATE
// columns and are returned as midnight in loc.
type AttendanceRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewAttendanceRepository(db *database.DB, loc *time.Location) *AttendanceRepository {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceRepository{pool: db.Pool, loc: loc}
}

const attendanceColumns = `ar.id, ar.student_id, ar.class_id, ar.section, ar.attendance_date, ar.status,
	ar.marked_by, ar.remarks, ar.late_minutes, ar.created_at, ar.updated_at`

const attendanceWithStudent = `SELECT ` + attendanceColumns + `, a.full_name, sp.student_code, sp.roll_number
	FROM attendance_records ar
	JOIN accounts a ON a.id = ar.student_id
	LEFT JOIN student_profiles sp ON sp.account_id = ar.student_id`

func (r *AttendanceRepository) scanRecord(scanner rowScanner, extra ...any) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	var status string
	dest := []any{
		&rec.ID, &rec.StudentID, &rec.ClassID, &rec.Section, &rec.Date, &status,
		&rec.MarkedBy, &rec.Remarks, &rec.LateMinutes, &rec.CreatedAt, &rec.UpdatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, database.MapPostgresError(err)
	}
	rec.Status = models.AttendanceStatus(status)
	rec.Date = r.inZone(rec.Date)
	return &rec, nil
}

func (r *AttendanceRepository) scanRecordWithStudent(scanner rowScanner) (*models.AttendanceRecord, error) {
	var name string
	var code *string
	var roll *int
	rec, err := r.scanRecord(scanner, &name, &code, &roll)
	if err != nil {
		return nil, err
	}
	rec.StudentName = name
	if code != nil {
		rec.StudentCode = *code
	}
	if roll != nil {
		rec.RollNumber = *roll
	}
	return rec, nil
}

// inZone re-anchors a DATE value, which pgx returns as UTC midnight, to
// midnight in the school's zone.
func (r *AttendanceRepository) inZone(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
}

func (r *AttendanceRepository) collect(rows pgx.Rows, withStudent bool) ([]models.AttendanceRecord, error) {
	defer rows.Close()

	records := make([]models.AttendanceRecord, 0)
	for rows.Next() {
		var rec *models.AttendanceRecord
		var err error
		if withStudent {
			rec, err = r.scanRecordWithStudent(rows)
		} else {
			rec, err = r.scanRecord(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// upsertAttempts bounds the update/insert retry in Upsert. Each retry means
// another writer created the row in between, so the next update finds it.
const upsertAttempts = 3

// Upsert inserts the mark for (student, day) or, when one exists, overwrites
// its status, remarks, late minutes and marker. Class, section and creation
// time of an existing row are kept.
//
// The update locks the existing row and returns its status from before the
// write, so PreviousStatus is exact even when two marks race. When no row
// exists the insert uses ON CONFLICT DO NOTHING; losing that race falls
// back to the update.
func (r *AttendanceRepository) Upsert(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceUpsert, error) {
	updateQuery := `
		UPDATE attendance_records AS ar
		SET status = $3, marked_by = $4, remarks = $5, late_minutes = $6, updated_at = $7
		FROM (
			SELECT id, status FROM attendance_records
			WHERE student_id = $1 AND attendance_date = $2
			FOR UPDATE
		) AS old
		WHERE ar.id = old.id
		RETURNING ` + attendanceColumns + `, old.status`

	insertQuery := `
		INSERT INTO attendance_records AS ar (id, student_id, class_id, section, attendance_date, status,
			marked_by, remarks, late_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (student_id, attendance_date) DO NOTHING
		RETURNING ` + attendanceColumns

	for attempt := 0; attempt < upsertAttempts; attempt++ {
		now := time.Now()

		var previous string
		saved, err := r.scanRecord(r.pool.QueryRow(ctx, updateQuery,
			rec.StudentID, rec.Date, string(rec.Status), rec.MarkedBy, rec.Remarks, rec.LateMinutes, now,
		), &previous)
		if err == nil {
			return &models.AttendanceUpsert{
				Record:         saved,
				PreviousStatus: models.AttendanceStatus(previous),
			}, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to update attendance: %w", err)
		}

		saved, err = r.scanRecord(r.pool.QueryRow(ctx, insertQuery,
			uuid.New().String(), rec.StudentID, rec.ClassID, rec.Section, rec.Date, string(rec.Status),
			rec.MarkedBy, rec.Remarks, rec.LateMinutes, now,
		))
		if err == nil {
			return &models.AttendanceUpsert{Record: saved, Created: true}, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to insert attendance: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to upsert attendance for student %s: row kept changing", rec.StudentID)
}

func (r *AttendanceRepository) GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	return r.scanRecordWithStudent(r.pool.QueryRow(ctx, attendanceWithStudent+` WHERE ar.id = $1`, id))
}

// Update overwrites the correctable fields of an existing record by id.
func (r *AttendanceRepository) Update(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	query := `
		UPDATE attendance_records AS ar
		SET status = $2, remarks = $3, late_minutes = $4, marked_by = $5, updated_at = NOW()
		WHERE ar.id = $1
		RETURNING ` + attendanceColumns

	updated, err := r.scanRecord(r.pool.QueryRow(ctx, query,
		rec.ID, string(rec.Status), rec.Remarks, rec.LateMinutes, rec.MarkedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update attendance: %w", err)
	}
	return updated, nil
}

// ListByClassDay returns the marks of one class section on one day ordered
// by roll number.
func (r *AttendanceRepository) ListByClassDay(ctx context.Context, classID, section string, day time.Time) ([]models.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, attendanceWithStudent+`
		WHERE ar.class_id = $1 AND ($2 = '' OR ar.section = $2) AND ar.attendance_date = $3
		ORDER BY sp.roll_number`, classID, section, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query class attendance: %w", err)
	}
	return r.collect(rows, true)
}

// ListByClassRange returns every mark of a class section within rng.
func (r *AttendanceRepository) ListByClassRange(ctx context.Context, classID, section string, rng models.DateRange) ([]models.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, attendanceWithStudent+`
		WHERE ar.class_id = $1 AND ($2 = '' OR ar.section = $2)
		  AND ($3::date IS NULL OR ar.attendance_date >= $3::date)
		  AND ($4::date IS NULL OR ar.attendance_date <= $4::date)
		ORDER BY sp.roll_number, ar.attendance_date`, classID, section, rng.From, rng.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query class attendance: %w", err)
	}
	return r.collect(rows, true)
}

// ListByStudent returns a student's marks newest first. limit <= 0 means no
// limit.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, rng models.DateRange, limit int) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records ar
		WHERE ar.student_id = $1
		  AND ($2::date IS NULL OR ar.attendance_date >= $2::date)
		  AND ($3::date IS NULL OR ar.attendance_date <= $3::date)
		ORDER BY ar.attendance_date DESC`
	args := []any{studentID, rng.From, rng.To}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query student attendance: %w", err)
	}
	return r.collect(rows, false)
}

// MonthlyStatusCounts aggregates a student's marks per (year, month, status).
func (r *AttendanceRepository) MonthlyStatusCounts(ctx context.Context, studentID string, rng models.DateRange) ([]models.StatusCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(YEAR FROM attendance_date)::int, EXTRACT(MONTH FROM attendance_date)::int, status, COUNT(*)
		FROM attendance_records
		WHERE student_id = $1
		  AND ($2::date IS NULL OR attendance_date >= $2::date)
		  AND ($3::date IS NULL OR attendance_date <= $3::date)
		GROUP BY 1, 2, 3
		ORDER BY 1, 2
	`, studentID, rng.From, rng.To)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attendance: %w", err)
	}

	counts := make([]models.StatusCount, 0)
	var c models.StatusCount
	var status string
	_, err = pgx.ForEachRow(rows, []any{&c.Year, &c.Month, &status, &c.Count}, func() error {
		c.Status = models.AttendanceStatus(status)
		counts = append(counts, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendance counts: %w", err)
	}
	return counts, nil
}

// DayStatusCounts counts every mark on day per status.
func (r *AttendanceRepository) DayStatusCounts(ctx context.Context, day time.Time) (map[models.AttendanceStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM attendance_records WHERE attendance_date = $1 GROUP BY status
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendance: %w", err)
	}

	counts := make(map[models.AttendanceStatus]int)
	var status string
	var n int
	_, err = pgx.ForEachRow(rows, []any{&status, &n}, func() error {
		counts[models.AttendanceStatus(status)] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendance counts: %w", err)
	}
	return counts, nil
}
