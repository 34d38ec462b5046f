//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/domain/practitioner"
	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/domain/subject"
	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/internal/platform/lock"
	"github.com/medsched/medsched/migrations"
)

// databaseURLEnv points the suite at an existing server instead of a container.
const databaseURLEnv = "MEDSCHED_TEST_DATABASE_URL"

// globalPool is shared by every test and initialized once in TestMain.
var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr, cleanup, err := resolveDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping integration tests: %v\n", err)
		os.Exit(0)
	}

	pool, err := db.NewPool(ctx, connStr, 16, 1)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

func resolveDatabase(ctx context.Context) (string, func(), error) {
	if url := os.Getenv(databaseURLEnv); url != "" {
		return url, func() {}, nil
	}
	if _, err := exec.LookPath("docker"); err != nil {
		return "", nil, fmt.Errorf("%s is unset and docker is not installed", databaseURLEnv)
	}
	return startPostgresContainer(ctx)
}

func uniqueTenantID(prefix string) string {
	short := strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	return fmt.Sprintf("%s_%s", prefix, short)
}

// createTenant migrates a fresh tenant schema and drops it when the test ends.
func createTenant(t *testing.T, prefix string) string {
	t.Helper()
	ctx := context.Background()
	tenantID := uniqueTenantID(prefix)
	if err := db.CreateTenantSchema(ctx, globalPool, tenantID, migrations.FS); err != nil {
		t.Fatalf("create tenant schema %s: %v", tenantID, err)
	}
	t.Cleanup(func() {
		schema := db.SchemaName(tenantID)
		if _, err := globalPool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})
	return tenantID
}

// withTenantConn acquires a connection scoped to tenantID, the way the tenant
// middleware does for a request, and hands the carrying context to fn.
func withTenantConn(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	conn, err := globalPool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SET search_path TO "+db.SearchPath(tenantID)); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	ctx = db.WithTenant(ctx, tenantID)
	ctx = context.WithValue(ctx, db.DBConnKey, conn)
	return fn(ctx)
}

// stack is the PostgreSQL-backed service graph the server builds for a request.
type stack struct {
	practitioners *practitioner.Service
	subjects      *subject.Service
	bookings      *scheduling.Service
	repo          scheduling.BookingRepository
}

func newStack(locker lock.Locker) *stack {
	practitioners := practitioner.NewService(practitioner.NewRepoPG(globalPool), scheduling.DefaultSlotSize, zerolog.Nop())
	subjects := subject.NewService(subject.NewRepoPG(globalPool))
	repo := scheduling.NewBookingRepoPG(globalPool)
	return &stack{
		practitioners: practitioners,
		subjects:      subjects,
		repo:          repo,
		bookings: scheduling.NewService(repo, practitioners, subjectNames{subjects}, locker,
			scheduling.WithLogger(zerolog.Nop()),
			scheduling.WithClock(func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }),
		),
	}
}

type subjectNames struct{ svc *subject.Service }

func (s subjectNames) LookupSubject(ctx context.Context, id uuid.UUID) (string, error) {
	name, err := s.svc.DisplayName(ctx, id)
	if errors.Is(err, subject.ErrNotFound) {
		return "", scheduling.ErrNotFound
	}
	return name, err
}

// unlocked lets every caller through, leaving overlap protection to the store.
type unlocked struct{}

func (unlocked) Acquire(context.Context, string) (func(), error) { return func() {}, nil }
func (unlocked) Backend() string                                  { return "none" }

// seed creates a practitioner working 09:00-12:00 in 30 minute slots and one subject.
func seed(t *testing.T, ctx context.Context, s *stack) (uuid.UUID, uuid.UUID) {
	t.Helper()
	start, end := clock(t, "09:00"), clock(t, "12:00")
	p, err := s.practitioners.PutSchedule(ctx, uuid.New(), practitioner.ScheduleRequest{
		Name:           "Dr. Grace Hopper",
		Specialization: "cardiology",
		WorkStart:      &start,
		WorkEnd:        &end,
		SlotSize:       30,
	})
	if err != nil {
		t.Fatalf("put schedule: %v", err)
	}
	sub := &subject.Subject{DisplayName: "Ada Lovelace"}
	if err := s.subjects.Create(ctx, sub); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	return p.ID, sub.ID
}

func clock(t *testing.T, s string) scheduling.Minute {
	t.Helper()
	m, err := scheduling.ParseClock(s)
	if err != nil {
		t.Fatalf("parse clock %q: %v", s, err)
	}
	return m
}
