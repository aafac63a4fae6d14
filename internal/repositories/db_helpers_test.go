//go:build integration

package repositories

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/schoolmis/internal/database"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testDB is shared by every integration test in the package. Tests call
// resetTables before seeding.
var testDB *database.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("schoolmis"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	code, err := runWithDatabase(ctx, container, m)
	_ = container.Terminate(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

func runWithDatabase(ctx context.Context, container *postgres.PostgresContainer, m *testing.M) (int, error) {
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return 0, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return 0, fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		return 0, err
	}

	testDB = &database.DB{Pool: pool}
	return m.Run(), nil
}

func resetTables(t *testing.T) {
	t.Helper()
	_, err := testDB.Pool.Exec(context.Background(), `
		TRUNCATE TABLE attendance_records, audit_events, student_profiles, teacher_profiles, classes, accounts CASCADE
	`)
	require.NoError(t, err)
}

func seedAccount(t *testing.T, role models.Role) *models.Account {
	t.Helper()
	created, err := NewAccountRepository(testDB).Create(context.Background(), &models.Account{
		Email:        strings.ToLower(gofakeit.Email()),
		FullName:     gofakeit.Name(),
		PasswordHash: "$2a$04$not.a.real.hash.but.long.enough.for.the.column",
		Role:         role,
		Active:       true,
	})
	require.NoError(t, err)
	return created
}

func seedClass(t *testing.T, name string, sections ...string) *models.Class {
	t.Helper()
	created, err := NewClassRepository(testDB).Create(context.Background(), &models.Class{
		ClassName:    name,
		Sections:     sections,
		AcademicYear: "2024-2025",
		Capacity:     models.DefaultClassCapacity,
	})
	require.NoError(t, err)
	return created
}

func seedStudent(t *testing.T, class *models.Class, section string, roll int) *models.StudentProfile {
	t.Helper()
	account := &models.Account{
		Email:        strings.ToLower(gofakeit.Email()),
		FullName:     gofakeit.Name(),
		PasswordHash: "$2a$04$not.a.real.hash.but.long.enough.for.the.column",
		Role:         models.RoleStudent,
		Active:       true,
	}
	created, err := NewStudentRepository(testDB).Create(context.Background(), account, &models.StudentProfile{
		ClassID:     class.ID,
		Section:     section,
		RollNumber:  roll,
		ParentEmail: gofakeit.Email(),
	})
	require.NoError(t, err)
	return created
}
