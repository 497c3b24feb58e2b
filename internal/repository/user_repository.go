package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/database"
	"marketplace/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email or username already exists")
)

// UserRepository defines the interface for user data access. Every user
// row is created with exactly one profile row.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user together with its empty profile. Both rows
// commit or neither does.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, username, password_hash, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			user.ID,
			user.Email,
			user.Username,
			user.PasswordHash,
			user.Role,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrUserAlreadyExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_profiles (user_id, created_at)
			VALUES ($1, $2)
		`, user.ID, user.CreatedAt); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return nil
	})
}

// FindByEmail retrieves a user by email
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, username, password_hash, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.findOne(ctx, query, email)
}

// FindByID retrieves a user by ID
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, email, username, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.findOne(ctx, query, id)
}

func (r *userRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}
