package user

import (
	"context"
	"testing"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

type memInternalStore struct {
	users map[string]*models.InternalUser
}

func (s *memInternalStore) GetUser(ctx context.Context, userID string) (*models.InternalUser, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func (s *memInternalStore) GetUserByUsername(ctx context.Context, username string) (*models.InternalUser, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memInternalStore) SaveUser(ctx context.Context, user *models.InternalUser) error {
	s.users[user.UserID] = user
	return nil
}

func (s *memInternalStore) DeleteUser(ctx context.Context, userID string) error {
	delete(s.users, userID)
	return nil
}

func (s *memInternalStore) ListUsers(ctx context.Context) ([]string, error) {
	var out []string
	for id := range s.users {
		out = append(out, id)
	}
	return out, nil
}

func (s *memInternalStore) GetUserKV(ctx context.Context, userID, key string) (*models.UserKeyValue, error) {
	return nil, models.ErrNotFound
}
func (s *memInternalStore) SetUserKV(ctx context.Context, userID, key, value string) error {
	return nil
}
func (s *memInternalStore) DeleteUserKV(ctx context.Context, userID, key string) error { return nil }
func (s *memInternalStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	return "", models.ErrNotFound
}
func (s *memInternalStore) SetSystemKV(ctx context.Context, key, value string) error { return nil }
func (s *memInternalStore) Close() error                                             { return nil }

type mockStorage struct {
	internal *memInternalStore
}

func (m *mockStorage) InternalStore() interfaces.InternalStore        { return m.internal }
func (m *mockStorage) PortfolioStore() interfaces.PortfolioStore      { return nil }
func (m *mockStorage) TransactionStore() interfaces.TransactionStore  { return nil }
func (m *mockStorage) DividendStore() interfaces.DividendStore        { return nil }
func (m *mockStorage) DataPath() string                               { return "" }
func (m *mockStorage) WriteRaw(subdir, key string, data []byte) error { return nil }
func (m *mockStorage) Migrate(ctx context.Context) error              { return nil }
func (m *mockStorage) Close() error                                   { return nil }

func newTestService() *Service {
	storage := &mockStorage{internal: &memInternalStore{users: make(map[string]*models.InternalUser)}}
	return NewService(storage, common.NewSilentLogger())
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "Farmor", "farmor@example.dk", "hemmeligt-kodeord")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Username != "farmor" {
		t.Errorf("expected lower-cased username, got %s", user.Username)
	}
	if user.PasswordHash == "hemmeligt-kodeord" || user.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}

	authed, err := svc.Authenticate(ctx, "farmor", "hemmeligt-kodeord")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if authed.UserID != user.UserID {
		t.Errorf("expected same account back")
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "farmor", "", "rigtigt-kodeord"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "farmor", "forkert-kodeord"); err == nil {
		t.Fatal("expected authentication failure")
	}
	if _, err := svc.Authenticate(ctx, "ukendt", "rigtigt-kodeord"); err == nil {
		t.Fatal("expected failure for unknown user")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "farmor", "", "kodeord1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "farmor", "", "kodeord2"); err == nil {
		t.Fatal("expected duplicate username rejection")
	}
}

func TestRegister_InvalidInput(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "x", "", "kodeord"); err == nil {
		t.Error("expected rejection of too-short username")
	}
	if _, err := svc.Register(ctx, "has spaces", "", "kodeord"); err == nil {
		t.Error("expected rejection of username with spaces")
	}
	if _, err := svc.Register(ctx, "farmor", "", ""); err == nil {
		t.Error("expected rejection of empty password")
	}
}
