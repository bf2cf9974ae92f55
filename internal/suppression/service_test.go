package suppression

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ignite/leadscore/internal/domain"
)

type memSuppRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.Suppression
}

func newMemSuppRepo() *memSuppRepo {
	return &memSuppRepo{entries: make(map[string]*domain.Suppression)}
}

func (m *memSuppRepo) IsSuppressed(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[email]
	return ok && s.Active, nil
}

func (m *memSuppRepo) Suppress(_ context.Context, s *domain.Suppression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.entries[s.Email] = &cp
	return nil
}

func (m *memSuppRepo) Remove(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[email]
	if !ok || !s.Active {
		return ErrNotFound
	}
	s.Active = false
	return nil
}

func (m *memSuppRepo) List(_ context.Context, f ListFilter) ([]domain.Suppression, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Suppression
	for _, s := range m.entries {
		if !s.Active {
			continue
		}
		if f.Reason != "" && s.Reason != f.Reason {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func TestAddAndCheck(t *testing.T) {
	svc := NewService(newMemSuppRepo())
	ctx := context.Background()

	entry, err := svc.Add(ctx, "  User@Example.COM ", domain.SuppressUnsubscribe, "campaign-7", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if entry.Email != "user@example.com" {
		t.Errorf("email = %q, want normalized lowercase", entry.Email)
	}

	suppressed, err := svc.Check(ctx, "USER@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !suppressed {
		t.Error("expected email to be suppressed")
	}
}

func TestAddValidation(t *testing.T) {
	svc := NewService(newMemSuppRepo())
	ctx := context.Background()

	if _, err := svc.Add(ctx, "", domain.SuppressManual, "", ""); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("empty email err = %v, want ErrInvalidEmail", err)
	}
	if _, err := svc.Add(ctx, "not-an-email", domain.SuppressManual, "", ""); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("missing @ err = %v, want ErrInvalidEmail", err)
	}
	if _, err := svc.Add(ctx, "a@b.com", domain.SuppressionReason("whim"), "", ""); !errors.Is(err, ErrInvalidReason) {
		t.Errorf("bad reason err = %v, want ErrInvalidReason", err)
	}
}

func TestRemove(t *testing.T) {
	svc := NewService(newMemSuppRepo())
	ctx := context.Background()

	if _, err := svc.Add(ctx, "a@b.com", domain.SuppressManual, "", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.Remove(ctx, "A@B.com"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	suppressed, _ := svc.Check(ctx, "a@b.com")
	if suppressed {
		t.Error("removed email should not be suppressed")
	}

	if err := svc.Remove(ctx, "a@b.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double remove err = %v, want ErrNotFound", err)
	}
}

func TestListFiltersByReason(t *testing.T) {
	svc := NewService(newMemSuppRepo())
	ctx := context.Background()

	svc.Add(ctx, "a@b.com", domain.SuppressBounce, "", "")
	svc.Add(ctx, "c@d.com", domain.SuppressComplaint, "", "")

	entries, total, err := svc.List(ctx, ListFilter{Reason: domain.SuppressBounce})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(entries) != 1 || entries[0].Email != "a@b.com" {
		t.Errorf("entries = %+v, want a@b.com only", entries)
	}
}
