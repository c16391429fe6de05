package provisioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/digihome/digihome-core/internal/device"
	"github.com/digihome/digihome-core/internal/infrastructure/database"
	"github.com/digihome/digihome-core/migrations"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestClaimer(t *testing.T) (*Claimer, *Tracker, *device.SQLiteRepository) {
	t.Helper()
	repo := device.NewSQLiteRepository(setupTestDB(t).DB)
	tr := NewTracker(time.Minute, nil)
	return NewClaimer(tr, repo, nil), tr, repo
}

func TestClaimer_Claim(t *testing.T) {
	c, tr, repo := newTestClaimer(t)
	ctx := context.Background()

	tr.Online("A1B2C3D4E5F6")
	tr.Confirm("A1B2C3D4E5F6")

	d, err := c.Claim(ctx, "acct-1", "A1B2C3D4E5F6")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if d.OwnerID != "acct-1" || d.Name != "DigiPlug D4E5F6" {
		t.Errorf("claimed device = %+v", d)
	}

	stored, err := repo.GetByID(ctx, "A1B2C3D4E5F6")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Active {
		t.Error("claimed device should start inactive")
	}
	if tr.Pending() != 0 {
		t.Errorf("tracker still holds %d entries after claim", tr.Pending())
	}
}

func TestClaimer_NotConfirmed(t *testing.T) {
	c, tr, _ := newTestClaimer(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func()
	}{
		{"never announced", func() {}},
		{"announced only", func() { tr.Online("A1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			if _, err := c.Claim(ctx, "acct-1", "A1"); !errors.Is(err, ErrNotConfirmed) {
				t.Errorf("Claim() error = %v, want ErrNotConfirmed", err)
			}
		})
	}
}

func TestClaimer_AlreadyRegistered(t *testing.T) {
	c, tr, repo := newTestClaimer(t)
	ctx := context.Background()

	if err := repo.Create(ctx, device.New("A1", "acct-other")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	tr.Online("A1")
	tr.Confirm("A1")

	if _, err := c.Claim(ctx, "acct-1", "A1"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("Claim() error = %v, want ErrAlreadyRegistered", err)
	}
	if tr.Pending() != 0 {
		t.Error("pending entry should be finalized for an already registered device")
	}

	got, _ := repo.GetByID(ctx, "A1")
	if got.OwnerID != "acct-other" {
		t.Errorf("owner changed to %q", got.OwnerID)
	}
}

func TestClaimer_InvalidID(t *testing.T) {
	c, _, _ := newTestClaimer(t)
	if _, err := c.Claim(context.Background(), "acct-1", "bad/id"); !errors.Is(err, device.ErrInvalidID) {
		t.Errorf("Claim() error = %v, want ErrInvalidID", err)
	}
}

func TestClaimer_Status(t *testing.T) {
	c, tr, _ := newTestClaimer(t)

	if _, ok := c.Status(); ok {
		t.Error("Status() reported a ready device on an empty tracker")
	}
	tr.Online("A1")
	tr.Confirm("A1")
	if id, ok := c.Status(); !ok || id != "A1" {
		t.Errorf("Status() = %q, %v; want A1, true", id, ok)
	}
}
