package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/identity/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return ErrUserAlreadyExist
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *GormRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Preload("Roles").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *GormRepo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Preload("Roles").Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *GormRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GrantRole attaches a role to the user, creating the role row on first use.
func (r *GormRepo) GrantRole(ctx context.Context, userID uuid.UUID, value string) error {
	role := models.Role{Value: value}
	if err := r.DB.WithContext(ctx).Where("value = ?", value).FirstOrCreate(&role).Error; err != nil {
		return fmt.Errorf("find role: %w", err)
	}
	user := models.User{ID: userID}
	if err := r.DB.WithContext(ctx).Model(&user).Association("Roles").Append(&role); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}
