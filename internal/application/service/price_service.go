package service

import (
	"context"

	"uniperp/internal/application/port"
	"uniperp/internal/domain/model"
)

type PriceService struct {
	repo port.Repository
}

func NewPriceService(repo port.Repository) *PriceService {
	return &PriceService{repo: repo}
}

func (s *PriceService) UpdateMarkPrice(ctx context.Context, mp *model.MarkPrice) error {
	if mp == nil || mp.Price <= 0 {
		return nil
	}
	return s.repo.UpsertMarkPrice(ctx, mp.Venue, mp.Symbol, mp.Price, mp.FundingRate, mp.Ts)
}

func (s *PriceService) GetMarkPrice(ctx context.Context, venue, symbol string) (price float64, ts int64, err error) {
	return s.repo.GetMarkPrice(ctx, venue, symbol)
}
