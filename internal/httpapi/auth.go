package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/store"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInvalidSignup      = errors.New("invalid signup")
	errAccountInactive    = errors.New("account is inactive")
)

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
}

type omnistockClaims struct {
	jwtlib.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
	}
}

// Signup registers a customer account. Staff accounts are never created
// through this path.
func (a *AuthManager) Signup(ctx context.Context, req domain.SignupRequest) (domain.UserProfile, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	if name == "" {
		return domain.UserProfile{}, fmt.Errorf("%w: name is required", errInvalidSignup)
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return domain.UserProfile{}, fmt.Errorf("%w: a valid email is required", errInvalidSignup)
	}
	if len(req.Password) < 8 {
		return domain.UserProfile{}, fmt.Errorf("%w: password must be at least 8 characters", errInvalidSignup)
	}
	if req.Password != req.ConfirmPassword {
		return domain.UserProfile{}, fmt.Errorf("%w: passwords do not match", errInvalidSignup)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserProfile{}, err
	}
	err = a.userStore.CreateUser(ctx, domain.UserAccount{
		Email:     email,
		Name:      name,
		Phone:     phone,
		Password:  hash,
		Role:      domain.RoleCustomer,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.UserProfile{}, err
	}

	return domain.UserProfile{Name: name, Email: email, Phone: phone, Role: domain.RoleCustomer}, nil
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	user, err := a.userStore.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(user.Password, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, errAccountInactive
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(*user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User: domain.UserProfile{
			Name:  user.Name,
			Email: user.Email,
			Phone: user.Phone,
			Role:  user.Role,
		},
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &omnistockClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Email: sub, Name: claims.Name, Role: claims.Role}, nil
}

func (a *AuthManager) sign(user domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := omnistockClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "omnistock",
		},
		Name: user.Name,
		Role: user.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
