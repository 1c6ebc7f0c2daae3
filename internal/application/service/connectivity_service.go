package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"uniperp/internal/application/port"
	"uniperp/internal/stream"
)

// ConnectivityService persists stream lifecycle transitions so venue
// connection health can be audited after the fact.
type ConnectivityService struct {
	repo port.Repository
}

func NewConnectivityService(repo port.Repository) *ConnectivityService {
	return &ConnectivityService{repo: repo}
}

func (s *ConnectivityService) RecordTransition(ctx context.Context, venue string, state stream.ConnState) {
	if err := s.repo.InsertConnEvent(ctx, time.Now().UnixMilli(), venue, state.String()); err != nil {
		log.Warn().Err(err).Str("venue", venue).Str("state", state.String()).Msg("conn event not persisted")
	}
}

// Listener adapts RecordTransition to the stream state-listener hook.
func (s *ConnectivityService) Listener(venue string) func(stream.ConnState) {
	return func(state stream.ConnState) {
		s.RecordTransition(context.Background(), venue, state)
	}
}
