package service

import (
	"context"

	"uniperp/internal/application/port"
	"uniperp/internal/domain/model"
)

type PositionService struct {
	repo port.Repository
}

func NewPositionService(repo port.Repository) *PositionService {
	return &PositionService{repo: repo}
}

func (s *PositionService) UpdatePosition(ctx context.Context, p *model.Position) error {
	if p == nil {
		return nil
	}
	return s.repo.UpsertPosition(ctx, p.Venue, p.Symbol, p.Size, p.EntryPrice, p.UpdatedAt.UnixMilli())
}

func (s *PositionService) GetPosition(ctx context.Context, venue, symbol string) (size, entryPrice float64, err error) {
	return s.repo.GetPosition(ctx, venue, symbol)
}

func (s *PositionService) ListAllPositions(ctx context.Context) ([]map[string]interface{}, error) {
	return s.repo.ListPositions(ctx)
}
