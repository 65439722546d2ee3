package service

import (
	"context"
	"errors"
	"fmt"

	"quicksend/internal/domain"
	"quicksend/internal/dto"
	"quicksend/internal/store"

	"golang.org/x/crypto/bcrypt"
)

func (s *Service) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.IDResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	exists, err := s.store.Users().ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, invalid("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Username:     req.Username,
		DisplayName:  req.Display,
		PasswordHash: string(hash),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, invalid("User already exists")
		}
		return nil, err
	}
	return &dto.IDResponse{ID: user.ID.String()}, nil
}

func (s *Service) ChangePassword(ctx context.Context, p domain.Principal, req dto.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Users().UpdatePasswordHash(ctx, p.UserID, string(hash)); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}

func (s *Service) LookupUser(ctx context.Context, username string) (*dto.UserResponse, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
		return nil, err
	}
	return &dto.UserResponse{ID: user.ID.String(), Username: user.Username, Display: user.Display()}, nil
}
