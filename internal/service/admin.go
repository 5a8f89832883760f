package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/identity/internal/models"
	"github.com/Skotchmaster/identity/internal/util"
)

type TokenLister interface {
	TokensByUser(ctx context.Context, userID uuid.UUID, offset, limit int) (int64, []models.Token, error)
}

type TokenPage struct {
	Total int64
	Page  int
	Size  int
	Items []models.Token
}

type AdminService struct {
	Tokens TokenLister
	Now    func() time.Time
}

func (s *AdminService) TokensForUser(ctx context.Context, userID uuid.UUID, page, size int) (*TokenPage, error) {
	from, limit := util.Calculate(page, size)
	total, items, err := s.Tokens.TokensByUser(ctx, userID, from, limit)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return &TokenPage{Total: total, Page: util.PageOf(from, limit), Size: limit, Items: items}, nil
}

func (s *AdminService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// StatusOf classifies a listed token against the service clock.
func (s *AdminService) StatusOf(t *models.Token) models.TokenStatus {
	return t.Status(s.now())
}
