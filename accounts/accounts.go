// Package accounts registers users and checks their credentials. Users are
// kept as one JSON list in the same key-value backend as the reports.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/storage"
)

// UsersKey is the key-value slot holding the user list.
const UsersKey = "users"

const minPasswordLen = 6

var (
	ErrDuplicate          = errors.New("accounts: phone or email already registered")
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	ErrInvalidInput       = errors.New("accounts: invalid registration")
)

type RegisterInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	GabineteID string `json:"gabineteId"`
}

// Service owns the user list.
type Service struct {
	mu   sync.Mutex
	kv   storage.KeyValue
	cost int
	now  func() time.Time
}

func NewService(kv storage.KeyValue) *Service {
	return &Service{kv: kv, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) load(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if _, err := storage.GetJSON(ctx, s.kv, UsersKey, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Register validates in, hashes the password and stores the new user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = normalizePhone(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Name == "":
		return models.User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case in.Phone == "":
		return models.User{}, fmt.Errorf("%w: phone is required", ErrInvalidInput)
	case len(in.Password) < minPasswordLen:
		return models.User{}, fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	if in.Role == "" {
		in.Role = models.RoleAgent
	}
	if !models.ValidRole(in.Role) {
		return models.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if u.Phone == in.Phone || (in.Email != "" && u.Email == in.Email) {
			return models.User{}, ErrDuplicate
		}
	}

	u := models.User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: string(hash),
		Role:         in.Role,
		GabineteID:   in.GabineteID,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := storage.SetJSON(ctx, s.kv, UsersKey, append(users, u)); err != nil {
		return models.User{}, err
	}
	log.WithField("user", u.ID).WithField("role", u.Role).Info("user registered")
	return u, nil
}

// Authenticate returns the active user with phone when password matches.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (models.User, error) {
	phone = normalizePhone(phone)
	users, err := s.load(ctx)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if u.Phone != phone || !u.IsActive {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return models.User{}, ErrInvalidCredentials
		}
		return u, nil
	}
	return models.User{}, ErrInvalidCredentials
}

// EnsureAdmin registers an admin with the given credentials unless a user
// with that phone already exists.
func (s *Service) EnsureAdmin(ctx context.Context, name, phone, password string) error {
	_, err := s.Register(ctx, RegisterInput{
		Name:     name,
		Phone:    phone,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

// Get looks a user up by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.User, bool, error) {
	users, err := s.load(ctx)
	if err != nil {
		return models.User{}, false, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, true, nil
		}
	}
	return models.User{}, false, nil
}

// normalizePhone keeps digits only so "(11) 98765-4321" and "11987654321"
// are the same login.
func normalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
