package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/schoolmis/internal/database"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

type TeacherRepository struct {
	db *database.DB
}

func NewTeacherRepository(db *database.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherSelect = `
	SELECT a.id, tp.teacher_code, a.full_name, a.email, a.active, tp.qualification, tp.subjects,
		tp.phone, tp.joining_date, tp.created_at, tp.updated_at
	FROM teacher_profiles tp
	JOIN accounts a ON a.id = tp.account_id`

func scanTeacherRow(scanner rowScanner) (*models.TeacherProfile, error) {
	var p models.TeacherProfile
	err := scanner.Scan(
		&p.AccountID, &p.TeacherCode, &p.FullName, &p.Email, &p.Active, &p.Qualification,
		pq.Array(&p.Subjects), &p.Phone, &p.JoiningDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if p.Subjects == nil {
		p.Subjects = []string{}
	}
	return &p, nil
}

func (r *TeacherRepository) GetByID(ctx context.Context, accountID string) (*models.TeacherProfile, error) {
	return scanTeacherRow(r.db.Pool.QueryRow(ctx, teacherSelect+` WHERE tp.account_id = $1`, accountID))
}

func (r *TeacherRepository) List(ctx context.Context, includeInactive bool) ([]*models.TeacherProfile, error) {
	rows, err := r.db.Pool.Query(ctx, teacherSelect+` WHERE ($1 OR a.active) ORDER BY tp.teacher_code`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to query teachers: %w", err)
	}
	defer rows.Close()

	teachers := make([]*models.TeacherProfile, 0)
	for rows.Next() {
		p, err := scanTeacherRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan teacher: %w", err)
		}
		teachers = append(teachers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return teachers, nil
}

// Create inserts the account and teacher profile in one transaction and
// assigns the next TCH code.
func (r *TeacherRepository) Create(ctx context.Context, account *models.Account, p *models.TeacherProfile) (*models.TeacherProfile, error) {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		created, err := insertAccount(ctx, tx, account)
		if err != nil {
			return err
		}

		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('teacher_code_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("failed to allocate teacher code: %w", err)
		}
		p.AccountID = created.ID
		p.TeacherCode = fmt.Sprintf("TCH%04d", seq)

		_, err = tx.Exec(ctx, `
			INSERT INTO teacher_profiles (account_id, teacher_code, qualification, subjects, phone, joining_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, p.AccountID, p.TeacherCode, p.Qualification, pq.Array(p.Subjects), p.Phone, p.JoiningDate, created.CreatedAt)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create teacher: %w", err)
	}
	return r.GetByID(ctx, p.AccountID)
}

func (r *TeacherRepository) Update(ctx context.Context, p *models.TeacherProfile) (*models.TeacherProfile, error) {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		now := time.Now()
		tag, err := tx.Exec(ctx, `
			UPDATE accounts SET full_name = $2, email = lower($3), updated_at = $4
			WHERE id = $1 AND role = 'teacher'
		`, p.AccountID, p.FullName, p.Email, now)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		_, err = tx.Exec(ctx, `
			UPDATE teacher_profiles
			SET qualification = $2, subjects = $3, phone = $4, joining_date = $5, updated_at = $6
			WHERE account_id = $1
		`, p.AccountID, p.Qualification, pq.Array(p.Subjects), p.Phone, p.JoiningDate, now)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update teacher: %w", err)
	}
	return r.GetByID(ctx, p.AccountID)
}
