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
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileRepository defines the interface for user profile data access.
// Profiles are inserted by UserRepository.Create.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)
	InterestCategoryIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ReplaceInterests(ctx context.Context, userID uuid.UUID, categoryIDs []uuid.UUID) error
}

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new instance of ProfileRepository
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// FindByUserID retrieves a profile with its interests
func (r *profileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	profile := &domain.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, created_at FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&profile.UserID, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile.InterestIDs, err = r.InterestCategoryIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// InterestCategoryIDs returns the user's declared interests
func (r *profileRepository) InterestCategoryIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category_id
		FROM profile_interests
		WHERE user_id = $1
		ORDER BY category_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interests: %w", err)
	}
	return collectIDs(rows)
}

// ReplaceInterests swaps the whole interest set in one transaction
func (r *profileRepository) ReplaceInterests(ctx context.Context, userID uuid.UUID, categoryIDs []uuid.UUID) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM profile_interests WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear interests: %w", err)
		}

		for _, categoryID := range categoryIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO profile_interests (user_id, category_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, userID, categoryID)
			if err != nil {
				if _, constraint := pgError(err); constraint == "profile_interests_user_id_fkey" {
					return ErrProfileNotFound
				}
				if isForeignKeyViolation(err) {
					return ErrCategoryNotFound
				}
				return fmt.Errorf("failed to add interest: %w", err)
			}
		}
		return nil
	})
}

func collectIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return ids, nil
}
