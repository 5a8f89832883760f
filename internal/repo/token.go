package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/identity/internal/models"
)

func (r *GormRepo) SaveToken(ctx context.Context, t *models.Token) error {
	if err := r.DB.WithContext(ctx).Omit("User").Create(t).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// FindActive matches value, revocation and expiry in one statement.
func (r *GormRepo) FindActive(ctx context.Context, value string, now time.Time) (*models.Token, error) {
	var token models.Token
	err := r.DB.WithContext(ctx).
		Preload("User.Roles").
		Where("value = ? AND revoked = ? AND expiry_at > ?", value, false, now.UnixMilli()).
		First(&token).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

func (r *GormRepo) FindNotRevoked(ctx context.Context, value string) (*models.Token, error) {
	var token models.Token
	if err := r.DB.WithContext(ctx).Where("value = ? AND revoked = ?", value, false).First(&token).Error; err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

// RevokeToken flips revoked only if it is still false. It reports
// ErrNotFound when another caller revoked the token first.
func (r *GormRepo) RevokeToken(ctx context.Context, t *models.Token, now time.Time) error {
	revokedAt := now.UTC()
	result := r.DB.WithContext(ctx).Model(&models.Token{}).
		Where("id = ? AND revoked = ?", t.ID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": revokedAt})
	if result.Error != nil {
		return fmt.Errorf("revoke token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	t.Revoked = true
	t.RevokedAt = &revokedAt
	return nil
}

func (r *GormRepo) TokensByUser(ctx context.Context, userID uuid.UUID, offset, limit int) (int64, []models.Token, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Token{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Token, 0, limit)
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// DeleteStale physically removes tokens that expired or were revoked
// before cutoff.
func (r *GormRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.DB.WithContext(ctx).
		Where("expiry_at <= ? OR (revoked = ? AND revoked_at <= ?)", cutoff.UnixMilli(), true, cutoff.UTC()).
		Delete(&models.Token{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete stale tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
