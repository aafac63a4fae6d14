package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/schoolmis/internal/database"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type ClassRepository struct {
	pool *pgxpool.Pool
}

func NewClassRepository(db *database.DB) *ClassRepository {
	return &ClassRepository{pool: db.Pool}
}

const classColumns = `c.id, c.class_name, c.sections, c.class_teacher_id, c.academic_year, c.room_number,
	c.capacity, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM student_profiles sp JOIN accounts a ON a.id = sp.account_id
	 WHERE sp.class_id = c.id AND a.active)`

func scanClassRow(scanner rowScanner) (*models.Class, error) {
	var c models.Class
	err := scanner.Scan(
		&c.ID, &c.ClassName, pq.Array(&c.Sections), &c.ClassTeacherID, &c.AcademicYear, &c.RoomNumber,
		&c.Capacity, &c.CreatedAt, &c.UpdatedAt, &c.StudentCount,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}

func (r *ClassRepository) GetByID(ctx context.Context, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes c WHERE c.id = $1`
	return scanClassRow(r.pool.QueryRow(ctx, query, id))
}

// List returns classes ordered by academic year then name. An empty
// academicYear lists every year.
func (r *ClassRepository) List(ctx context.Context, academicYear string) ([]*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes c
		WHERE ($1 = '' OR c.academic_year = $1)
		ORDER BY c.academic_year DESC, c.class_name`

	rows, err := r.pool.Query(ctx, query, academicYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	classes := make([]*models.Class, 0)
	for rows.Next() {
		c, err := scanClassRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return classes, nil
}

func (r *ClassRepository) Create(ctx context.Context, c *models.Class) (*models.Class, error) {
	c.ID = uuid.New().String()
	now := time.Now()

	query := `
		WITH c AS (
			INSERT INTO classes (id, class_name, sections, class_teacher_id, academic_year, room_number, capacity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING *
		)
		SELECT c.id, c.class_name, c.sections, c.class_teacher_id, c.academic_year, c.room_number,
			c.capacity, c.created_at, c.updated_at, 0
		FROM c
	`

	created, err := scanClassRow(r.pool.QueryRow(ctx, query,
		c.ID, c.ClassName, pq.Array(c.Sections), c.ClassTeacherID, c.AcademicYear, c.RoomNumber, c.Capacity, now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}
	return created, nil
}

func (r *ClassRepository) Update(ctx context.Context, c *models.Class) (*models.Class, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE classes
		SET class_name = $2, sections = $3, class_teacher_id = $4, academic_year = $5,
			room_number = $6, capacity = $7, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.ClassName, pq.Array(c.Sections), c.ClassTeacherID, c.AcademicYear, c.RoomNumber, c.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to update class: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}
	return r.GetByID(ctx, c.ID)
}

func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: class still has student or attendance records", models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to delete class: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SectionStudentCounts returns active students per section of a class.
func (r *ClassRepository) SectionStudentCounts(ctx context.Context, classID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sp.section, COUNT(*)
		FROM student_profiles sp JOIN accounts a ON a.id = sp.account_id
		WHERE sp.class_id = $1 AND a.active
		GROUP BY sp.section
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}

	counts := make(map[string]int)
	var section string
	var n int
	_, err = pgx.ForEachRow(rows, []any{&section, &n}, func() error {
		counts[section] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan section counts: %w", err)
	}
	return counts, nil
}
