package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/store"
)

type userStoreStub struct {
	mu    sync.Mutex
	users map[string]domain.UserAccount
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	if _, exists := s.users[user.Email]; exists {
		return store.ErrConflict
	}
	s.users[user.Email] = user
	return nil
}

func (s *userStoreStub) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func TestSignupHashesPasswordAndForcesCustomerRole(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, users)

	profile, err := manager.Signup(context.Background(), domain.SignupRequest{
		Name:            "  Rani ",
		Email:           " Rani@Example.com ",
		Password:        "s3cret-pass",
		ConfirmPassword: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if profile.Role != domain.RoleCustomer || profile.Email != "rani@example.com" || profile.Name != "Rani" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	stored := users.users["rani@example.com"]
	if stored.Password == "s3cret-pass" || !isPasswordHash(stored.Password) {
		t.Fatalf("expected a bcrypt hash, got %q", stored.Password)
	}
	if !stored.Active {
		t.Fatalf("expected new account to be active")
	}
}

func TestSignupValidation(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	cases := []struct {
		name string
		req  domain.SignupRequest
	}{
		{"missing name", domain.SignupRequest{Email: "a@example.com", Password: "password1", ConfirmPassword: "password1"}},
		{"bad email", domain.SignupRequest{Name: "A", Email: "not-an-email", Password: "password1", ConfirmPassword: "password1"}},
		{"short password", domain.SignupRequest{Name: "A", Email: "a@example.com", Password: "short", ConfirmPassword: "short"}},
		{"mismatch", domain.SignupRequest{Name: "A", Email: "a@example.com", Password: "password1", ConfirmPassword: "password2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manager.Signup(context.Background(), tc.req)
			if !errors.Is(err, errInvalidSignup) {
				t.Fatalf("expected errInvalidSignup, got %v", err)
			}
		})
	}
}

func TestLoginTokenRoundTrip(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, users)
	if _, err := manager.Signup(context.Background(), domain.SignupRequest{
		Name:            "Budi",
		Email:           "budi@example.com",
		Password:        "password1",
		ConfirmPassword: "password1",
	}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Email: "BUDI@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Email != "budi@example.com" || actor.Role != domain.RoleCustomer || actor.Name != "Budi" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	other := NewAuthManager("another-secret", time.Hour, users)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
	if _, err := manager.ParseToken(resp.AccessToken + "x"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestLoginRejectsWrongPasswordAndInactiveAccount(t *testing.T) {
	hash, err := hashPassword("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := &userStoreStub{users: map[string]domain.UserAccount{
		"gone@example.com":  {Email: "gone@example.com", Name: "Gone", Password: hash, Role: domain.RoleCashier, Active: false},
		"here@example.com":  {Email: "here@example.com", Name: "Here", Password: hash, Role: domain.RoleCashier, Active: true},
		"plain@example.com": {Email: "plain@example.com", Name: "Plain", Password: "password1", Role: domain.RoleCashier, Active: true},
	}}
	manager := NewAuthManager("test-secret", time.Hour, users)

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Email: "here@example.com", Password: "password2"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Email: "gone@example.com", Password: "password1"}); !errors.Is(err, errAccountInactive) {
		t.Fatalf("expected inactive account error, got %v", err)
	}
	// Stored plain text never verifies.
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Email: "plain@example.com", Password: "password1"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for plain password, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})
	token, err := manager.sign(domain.UserAccount{Email: "x@example.com", Role: domain.RoleOwner}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = manager.ParseToken(token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired token error, got %v", err)
	}
}
