package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/maksimzayats/fastdjango/internal/model"
	"github.com/maksimzayats/fastdjango/internal/repo"
)

// UserService handles registration and credential checks.
type UserService struct {
	userRepo repo.UserRepo
}

// NewUserService creates a new user service
func NewUserService(userRepo repo.UserRepo) *UserService {
	return &UserService{userRepo: userRepo}
}

// RegisterParams carries a registration request.
type RegisterParams struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// RegisterUser validates the password, hashes it and creates the user.
// Returns ErrWeakPassword or ErrUserExists on the corresponding failures.
func (s *UserService) RegisterUser(ctx context.Context, p RegisterParams) (model.User, error) {
	if err := ValidatePassword(p.Password, p.Username, p.Email, p.FirstName, p.LastName); err != nil {
		return model.User{}, err
	}

	hash, err := HashPassword(p.Password)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.userRepo.Create(ctx, repo.CreateUserParams{
		Username:     p.Username,
		Email:        p.Email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateUser) {
			return model.User{}, ErrUserExists
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// AuthenticateUser returns the user matching the credentials, or false when
// the username is unknown or the password does not match. The two cases are
// indistinguishable to the caller.
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (model.User, bool, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return model.User{}, false, nil
		}
		return model.User{}, false, fmt.Errorf("get user by username: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return model.User{}, false, nil
	}
	return user, true, nil
}

// GetUserByID loads a user by id. Returns repo.ErrUserNotFound when absent.
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
