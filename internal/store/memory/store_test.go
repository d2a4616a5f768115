package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/detailing/internal/claims"
	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/store/memory"
)

var _ claims.Store = (*memory.Store)(nil)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newClaim(t *testing.T, jobID, user string, offset time.Duration) domain.Claim {
	t.Helper()
	c, err := domain.NewClaim(jobID, user, base.Add(offset))
	if err != nil {
		t.Fatalf("NewClaim() error = %v", err)
	}
	return c
}

func TestStore_InsertRejectsSecondActiveClaim(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	first, err := s.Insert(ctx, newClaim(t, "J1", "alice", 0))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if first.Version != 1 {
		t.Errorf("Version = %d, want 1", first.Version)
	}

	if _, err := s.Insert(ctx, newClaim(t, "J1", "bob", time.Second)); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("second Insert() error = %v, want %v", err, domain.ErrAlreadyClaimed)
	}

	cancelled, _ := first.Cancel()
	if _, err := s.Update(ctx, cancelled); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := s.Insert(ctx, newClaim(t, "J1", "bob", 2*time.Second)); err != nil {
		t.Errorf("Insert() after cancel error = %v", err)
	}
}

func TestStore_ConcurrentInsertHasOneWinner(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	const racers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, _ := domain.NewClaim("J1", "user"+string(rune('a'+i)), base)
			if _, err := s.Insert(ctx, c); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want 1", wins)
	}
}

func TestStore_UpdateChecksVersion(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	stored, _ := s.Insert(ctx, newClaim(t, "J1", "alice", 0))
	cancelled, _ := stored.Cancel()

	saved, err := s.Update(ctx, cancelled)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if saved.Version != 2 {
		t.Errorf("Version = %d, want 2", saved.Version)
	}

	if _, err := s.Update(ctx, cancelled); !errors.Is(err, domain.ErrStaleClaim) {
		t.Errorf("stale Update() error = %v, want %v", err, domain.ErrStaleClaim)
	}

	unknown := newClaim(t, "J9", "alice", 0)
	if _, err := s.Update(ctx, unknown); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("Update(unknown) error = %v, want %v", err, domain.ErrClaimNotFound)
	}
}

func TestStore_Lookups(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	stored, _ := s.Insert(ctx, newClaim(t, "J1", "alice", 0))
	stored.JobNumber = 7
	started, _ := stored.Activate()
	started, _ = s.Update(ctx, started)

	if _, err := s.FindStarted(ctx, "J1", "alice"); err != nil {
		t.Errorf("FindStarted() error = %v", err)
	}
	if _, err := s.FindStarted(ctx, "J1", "bob"); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("FindStarted(bob) error = %v", err)
	}
	if _, err := s.FindPaused(ctx, "J1", "alice"); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("FindPaused() error = %v", err)
	}

	got, err := s.FindByKey(ctx, started.Key())
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if got.Status != domain.StatusStarted || got.Version != 2 {
		t.Errorf("FindByKey() = %s v%d, want STARTED v2", got.Status, got.Version)
	}

	active, err := s.FindActive(ctx, "J1")
	if err != nil || active.Key() != started.Key() {
		t.Errorf("FindActive() = %v, %v", active.Key(), err)
	}
	if _, err := s.FindActive(ctx, "J2"); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("FindActive(J2) error = %v", err)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	stored, _ := s.Insert(ctx, newClaim(t, "J1", "alice", 0))
	stored.FileSets["x"] = domain.FileSet{ID: "x"}

	again, _ := s.FindByKey(ctx, stored.Key())
	if len(again.FileSets) != 0 {
		t.Error("mutating a returned claim changed the stored claim")
	}
}

func TestStore_FindByJobOldestFirst(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i, user := range []string{"alice", "bob", "carol"} {
		c, err := s.Insert(ctx, newClaim(t, "J1", user, time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("Insert(%s) error = %v", user, err)
		}
		cancelled, _ := c.Cancel()
		s.Update(ctx, cancelled)
	}

	history, err := s.FindByJob(ctx, "J1")
	if err != nil {
		t.Fatalf("FindByJob() error = %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if len(history) != len(want) {
		t.Fatalf("history = %d claims, want %d", len(history), len(want))
	}
	for i, c := range history {
		if c.ClaimedByUsername != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, c.ClaimedByUsername, want[i])
		}
	}
}

func TestStore_ListPaginates(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		jobID := "J" + string(rune('1'+i))
		c, _ := s.Insert(ctx, newClaim(t, jobID, "alice", time.Duration(i)*time.Minute))
		c.JobNumber = i + 1
		started, _ := c.Activate()
		s.Update(ctx, started)
	}
	s.Insert(ctx, newClaim(t, "J9", "bob", time.Hour))

	tests := []struct {
		name      string
		filter    domain.ClaimFilter
		wantJobs  []string
		wantTotal int
	}{
		{"all", domain.ClaimFilter{}, []string{"J9", "J5", "J4", "J3", "J2", "J1"}, 6},
		{"started page 1", domain.ClaimFilter{Statuses: []domain.Status{domain.StatusStarted}, Page: 1, PageSize: 2}, []string{"J5", "J4"}, 5},
		{"started page 3", domain.ClaimFilter{Statuses: []domain.Status{domain.StatusStarted}, Page: 3, PageSize: 2}, []string{"J1"}, 5},
		{"past the end", domain.ClaimFilter{Page: 9, PageSize: 2}, nil, 6},
		{"by user", domain.ClaimFilter{Username: "bob"}, []string{"J9"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(got) != len(tt.wantJobs) {
				t.Fatalf("List() = %d claims, want %d", len(got), len(tt.wantJobs))
			}
			for i, c := range got {
				if c.JobID != tt.wantJobs[i] {
					t.Errorf("List()[%d] = %s, want %s", i, c.JobID, tt.wantJobs[i])
				}
			}
		})
	}
}
