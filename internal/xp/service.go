package xp

import (
	"context"

	"github.com/google/uuid"

	"github.com/techsoc/backend/internal/models"
)

// Service awards XP through the ledger and keeps the leaderboard cache fresh.
type Service struct {
	ledger *Ledger
	cache  *LeaderboardCache
}

// NewService creates an XP service. cache may be nil.
func NewService(ledger *Ledger, cache *LeaderboardCache) *Service {
	return &Service{ledger: ledger, cache: cache}
}

// Award records amount for the attendee and invalidates cached rankings.
func (s *Service) Award(ctx context.Context, userID, eventID uuid.UUID, amount int) (*models.XPAward, error) {
	a, err := s.ledger.Award(ctx, userID, eventID, amount)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return a, nil
}

// History returns the user's awards.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]models.XPAward, error) {
	return s.ledger.History(ctx, userID)
}

// Leaderboard returns the top users, through the cache when configured.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if s.cache != nil {
		return s.cache.Leaderboard(ctx, limit)
	}
	return s.ledger.Leaderboard(ctx, limit)
}

// Reconcile repairs drifted totals and invalidates cached rankings.
func (s *Service) Reconcile(ctx context.Context) (int64, error) {
	n, err := s.ledger.Reconcile(ctx)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return n, nil
}
