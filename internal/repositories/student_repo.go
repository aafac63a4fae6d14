package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/schoolmis/internal/database"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/jackc/pgx/v5"
)

type StudentRepository struct {
	db *database.DB
}

func NewStudentRepository(db *database.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// StudentFilter narrows List. Search matches name, email or student code.
type StudentFilter struct {
	ClassID         string
	Section         string
	Gender          string
	Search          string
	IncludeInactive bool
	Limit           int
	Offset          int
}

const studentSelect = `
	SELECT a.id, sp.student_code, a.full_name, a.email, a.active, sp.class_id, c.class_name,
		sp.section, sp.roll_number, sp.date_of_birth, sp.gender, sp.parent_name, sp.parent_email,
		sp.parent_phone, sp.address, sp.created_at, sp.updated_at`

const studentFrom = `
	FROM student_profiles sp
	JOIN accounts a ON a.id = sp.account_id
	JOIN classes c ON c.id = sp.class_id`

func scanStudentRow(scanner rowScanner, extra ...any) (*models.StudentProfile, error) {
	var p models.StudentProfile
	dest := []any{
		&p.AccountID, &p.StudentCode, &p.FullName, &p.Email, &p.Active, &p.ClassID, &p.ClassName,
		&p.Section, &p.RollNumber, &p.DateOfBirth, &p.Gender, &p.ParentName, &p.ParentEmail,
		&p.ParentPhone, &p.Address, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &p, nil
}

func (r *StudentRepository) GetByID(ctx context.Context, accountID string) (*models.StudentProfile, error) {
	query := studentSelect + studentFrom + ` WHERE sp.account_id = $1`
	return scanStudentRow(r.db.Pool.QueryRow(ctx, query, accountID))
}

// List returns one page of students and the total number of matches.
func (r *StudentRepository) List(ctx context.Context, f StudentFilter) ([]*models.StudentProfile, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := studentSelect + `, COUNT(*) OVER ()` + studentFrom + `
		WHERE ($1 = '' OR sp.class_id::text = $1)
		  AND ($2 = '' OR sp.section = $2)
		  AND ($3 = '' OR sp.gender = $3)
		  AND ($4 = '' OR a.full_name ILIKE '%' || $4 || '%' OR a.email ILIKE '%' || $4 || '%'
		       OR sp.student_code ILIKE '%' || $4 || '%')
		  AND ($5 OR a.active)
		ORDER BY c.class_name, sp.section, sp.roll_number
		LIMIT $6 OFFSET $7`

	rows, err := r.db.Pool.Query(ctx, query, f.ClassID, f.Section, f.Gender, f.Search, f.IncludeInactive, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	students := make([]*models.StudentProfile, 0)
	total := 0
	for rows.Next() {
		p, err := scanStudentRow(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}
	return students, total, nil
}

// Create inserts the account and its student profile in one transaction and
// assigns the next student code.
func (r *StudentRepository) Create(ctx context.Context, account *models.Account, p *models.StudentProfile) (*models.StudentProfile, error) {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		created, err := insertAccount(ctx, tx, account)
		if err != nil {
			return err
		}

		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('student_code_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("failed to allocate student code: %w", err)
		}
		p.AccountID = created.ID
		p.StudentCode = fmt.Sprintf("STU%s%04d", created.CreatedAt.Format("06"), seq)

		_, err = tx.Exec(ctx, `
			INSERT INTO student_profiles (account_id, student_code, class_id, section, roll_number,
				date_of_birth, gender, parent_name, parent_email, parent_phone, address, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		`, p.AccountID, p.StudentCode, p.ClassID, p.Section, p.RollNumber,
			p.DateOfBirth, p.Gender, p.ParentName, p.ParentEmail, p.ParentPhone, p.Address, created.CreatedAt)
		if err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return r.GetByID(ctx, p.AccountID)
}

// Update writes the mutable account and profile fields of p.
func (r *StudentRepository) Update(ctx context.Context, p *models.StudentProfile) (*models.StudentProfile, error) {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		now := time.Now()
		tag, err := tx.Exec(ctx, `
			UPDATE accounts SET full_name = $2, email = lower($3), updated_at = $4
			WHERE id = $1 AND role = 'student'
		`, p.AccountID, p.FullName, p.Email, now)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		_, err = tx.Exec(ctx, `
			UPDATE student_profiles
			SET class_id = $2, section = $3, roll_number = $4, date_of_birth = $5, gender = $6,
				parent_name = $7, parent_email = $8, parent_phone = $9, address = $10, updated_at = $11
			WHERE account_id = $1
		`, p.AccountID, p.ClassID, p.Section, p.RollNumber, p.DateOfBirth, p.Gender,
			p.ParentName, p.ParentEmail, p.ParentPhone, p.Address, now)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}
	return r.GetByID(ctx, p.AccountID)
}

// RollNumberTaken reports whether another student holds roll in the section.
func (r *StudentRepository) RollNumberTaken(ctx context.Context, classID, section string, roll int, excludeID string) (bool, error) {
	var taken bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM student_profiles
			WHERE class_id = $1 AND section = $2 AND roll_number = $3 AND account_id::text <> $4
		)
	`, classID, section, roll, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check roll number: %w", err)
	}
	return taken, nil
}

// CountActiveInSection counts active students enrolled in a class section.
func (r *StudentRepository) CountActiveInSection(ctx context.Context, classID, section string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM student_profiles sp JOIN accounts a ON a.id = sp.account_id
		WHERE sp.class_id = $1 AND sp.section = $2 AND a.active
	`, classID, section).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}
