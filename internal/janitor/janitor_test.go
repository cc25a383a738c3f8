package janitor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zulandar/puddle/internal/db/dbtest"
	"github.com/zulandar/puddle/internal/identity"
	"github.com/zulandar/puddle/internal/models"
)

type fakePruner struct {
	calls atomic.Int32
	err   error
}

func (p *fakePruner) PruneRevoked(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	if p.err != nil {
		return 0, p.err
	}
	return 2, nil
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Opts
		wantErr string
	}{
		{"missing pruner", Opts{}, "pruner is required"},
		{"bad schedule", Opts{Pruner: &fakePruner{}, Schedule: "not a cron expr"}, "schedule"},
		{"six fields", Opts{Pruner: &fakePruner{}, Schedule: "0 0 * * * *"}, "schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestNext_DefaultScheduleIsHourly(t *testing.T) {
	j, err := New(Opts{Pruner: &fakePruner{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	from := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if got := j.Next(from); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestRunOnce(t *testing.T) {
	p := &fakePruner{}
	j, _ := New(Opts{Pruner: p})
	n, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 || p.calls.Load() != 1 {
		t.Errorf("n = %d, calls = %d", n, p.calls.Load())
	}

	p.err = errors.New("db down")
	if _, err := j.RunOnce(context.Background()); err == nil {
		t.Error("expected error from failing pruner")
	}
}

func TestRunOnce_PrunesExpiredRevocations(t *testing.T) {
	gormDB := dbtest.Open(t)
	sessions, err := identity.NewSessionManager(identity.SessionOpts{DB: gormDB, Secret: "test-secret-0123456789"})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	gormDB.Create(&models.RevokedSession{TokenID: "old", UserID: 1, ExpiresAt: time.Now().Add(-time.Hour).UTC()})
	gormDB.Create(&models.RevokedSession{TokenID: "live", UserID: 1, ExpiresAt: time.Now().Add(time.Hour).UTC()})

	j, err := New(Opts{Pruner: sessions})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	var left []models.RevokedSession
	gormDB.Find(&left)
	if len(left) != 1 || left[0].TokenID != "live" {
		t.Errorf("remaining = %+v, want only live", left)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	j, _ := New(Opts{Pruner: &fakePruner{}})
	ctx, cancel := context.WithCancel(context.Background())
	done := j.Start(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
