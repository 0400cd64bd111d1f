package account

import (
	"context"

	"go.uber.org/zap"
)

// Registrar accepts new account registrations.
type Registrar interface {
	Register(ctx context.Context, form RegisterForm) (*User, error)
}

type Service interface {
	Login(ctx context.Context, username, password string) (*User, error)
	Register(ctx context.Context, form RegisterForm) (*User, error)
}

type service struct {
	repo      Repository
	registrar Registrar
	log       *zap.Logger
}

func NewService(repo Repository, registrar Registrar, log *zap.Logger) Service {
	return &service{
		repo:      repo,
		registrar: registrar,
		log:       log,
	}
}

// Login matches the plaintext password exactly. No hashing, tokens or expiry.
func (s *service) Login(ctx context.Context, username, password string) (*User, error) {
	u, ok := s.repo.GetByUsername(ctx, username)
	if !ok || u.Password != password {
		s.log.Info("login rejected", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}
	s.log.Info("login accepted", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *service) Register(ctx context.Context, form RegisterForm) (*User, error) {
	u, err := s.registrar.Register(ctx, form)
	if err != nil {
		s.log.Warn("registration failed", zap.String("username", form.Username), zap.Error(err))
		return nil, err
	}
	return u, nil
}

type unimplementedRegistrar struct{}

// NewRegistrar returns the placeholder registrar; every call fails with
// ErrNotImplemented.
func NewRegistrar() Registrar {
	return unimplementedRegistrar{}
}

func (unimplementedRegistrar) Register(ctx context.Context, form RegisterForm) (*User, error) {
	return nil, ErrNotImplemented
}
