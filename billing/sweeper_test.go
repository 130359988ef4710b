package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/giginltd/gigin_backend/models"
	"github.com/sirupsen/logrus"
)

// NOTE: These tests are intentionally DB-free. They validate the sweep
// semantics: single-holder leasing, keyset pagination, and that one bad
// payment never stalls the rest of the page.

type fakeLeaser struct {
	mu   sync.Mutex
	held bool
}

func (f *fakeLeaser) Acquire(ctx context.Context) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func() {
		f.mu.Lock()
		f.held = false
		f.mu.Unlock()
	}, true, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func stalePayments(n int) []models.Payment {
	out := make([]models.Payment, n)
	for i := range out {
		out[i] = models.Payment{ID: fmt.Sprintf("pi_%04d", i), Status: models.PaymentStatusPending}
	}
	return out
}

func newTestSweeper(all []models.Payment, reconcile func(ctx context.Context, p *models.Payment) error) *Sweeper {
	return &Sweeper{
		Leaser: &fakeLeaser{},
		ListStale: func(ctx context.Context, cutoff time.Time, afterId string, limit int) ([]models.Payment, error) {
			var page []models.Payment
			for _, p := range all {
				if p.ID > afterId {
					page = append(page, p)
					if len(page) == limit {
						break
					}
				}
			}
			return page, nil
		},
		Reconcile: reconcile,
		Logger:    quietLogger(),
		PageSize:  10,
		MinAge:    SweepMinAge,
		Now:       time.Now,
	}
}

func TestSweepPagesThroughAllStalePayments(t *testing.T) {
	all := stalePayments(35)
	var seen []string
	s := newTestSweeper(all, func(ctx context.Context, p *models.Payment) error {
		seen = append(seen, p.ID)
		return nil
	})

	examined, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if examined != 35 {
		t.Errorf("examined = %d, want 35", examined)
	}
	if len(seen) != 35 {
		t.Fatalf("reconciled %d payments, want 35", len(seen))
	}
	for i, id := range seen {
		if id != all[i].ID {
			t.Fatalf("order broken at %d: got %s, want %s", i, id, all[i].ID)
		}
	}
}

func TestSweepSkipsFailedItems(t *testing.T) {
	all := stalePayments(5)
	var seen []string
	s := newTestSweeper(all, func(ctx context.Context, p *models.Payment) error {
		if p.ID == "pi_0002" {
			return errors.New("stripe timeout")
		}
		seen = append(seen, p.ID)
		return nil
	})

	examined, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if examined != 5 {
		t.Errorf("examined = %d, want 5 (error item still counts)", examined)
	}
	if len(seen) != 4 {
		t.Errorf("reconciled %d, want 4 (one skipped)", len(seen))
	}
}

func TestSweepYieldsWhenLeaseHeld(t *testing.T) {
	leaser := &fakeLeaser{held: true}
	s := newTestSweeper(stalePayments(3), func(ctx context.Context, p *models.Payment) error {
		t.Fatal("must not reconcile without the lease")
		return nil
	})
	s.Leaser = leaser

	examined, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if examined != 0 {
		t.Errorf("examined = %d, want 0", examined)
	}
}

func TestSweepLeaseMutualExclusion(t *testing.T) {
	leaser := &fakeLeaser{}
	var mu sync.Mutex
	active := 0
	maxActive := 0

	reconcile := func(ctx context.Context, p *models.Payment) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newTestSweeper(stalePayments(12), reconcile)
			s.Leaser = leaser
			_, _ = s.Sweep(context.Background())
		}()
	}
	wg.Wait()

	if maxActive > 1 {
		t.Errorf("observed %d concurrent reconcile calls; lease must serialize sweeps", maxActive)
	}
}

func TestSweepReleasesLeaseAfterRun(t *testing.T) {
	leaser := &fakeLeaser{}
	s := newTestSweeper(stalePayments(2), func(ctx context.Context, p *models.Payment) error { return nil })
	s.Leaser = leaser

	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	// A second run must be able to take the lease again.
	examined, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if examined != 2 {
		t.Errorf("second sweep examined = %d, want 2", examined)
	}
}
