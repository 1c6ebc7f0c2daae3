package watch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"uniperp/internal/application/port"
	"uniperp/internal/domain/model"
)

type ServiceDeps struct {
	Venues           []port.Venue
	Symbols          []string
	SnapshotEveryMin int
	PollInterval     time.Duration
	Sink             port.Sink
	Repo             port.Repository
}

// Service watches mark prices across every configured venue: the
// stream caches feed a merged channel, the console shows a live line,
// and the repository keeps the latest value plus periodic snapshots.
type Service struct {
	deps ServiceDeps
	st   *State
	fmt  *Formatter
}

func NewService(deps ServiceDeps) *Service {
	if deps.PollInterval <= 0 {
		deps.PollInterval = time.Second
	}
	return &Service{
		deps: deps,
		st:   NewState(deps.Symbols),
		fmt:  NewFormatter(),
	}
}

func (s *Service) Run(ctx context.Context) error {
	if len(s.deps.Venues) == 0 {
		return errors.New("no venues")
	}

	merged := make(chan model.MarkPrice, 1024)

	// one poller per venue; reads come from the venue's stream cache,
	// so each tick is a local lookup once the stream is warm
	for _, v := range s.deps.Venues {
		go s.pollVenue(ctx, v, merged)
		log.Info().Str("venue", v.Name()).Msg("venue watch started")
	}

	snapTicker := time.NewTicker(time.Duration(s.deps.SnapshotEveryMin) * time.Minute)
	defer snapTicker.Stop()

	// initial live line
	_ = s.deps.Sink.WriteLive(s.fmt.Render(s.st, RenderLive))

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case now := <-snapTicker.C:
			line := s.fmt.Render(s.st, RenderSnapshot)
			_ = s.deps.Sink.WriteSnapshot(now, line)
			_ = s.deps.Repo.InsertSnapshot(ctx, now.UnixMilli(), line)

		case mp := <-merged:
			changed := s.st.Apply(mp)
			if changed {
				_ = s.deps.Sink.WriteLive(s.fmt.Render(s.st, RenderLive))
			}
			if mp.Price > 0 {
				_ = s.deps.Repo.UpsertMarkPrice(ctx, mp.Venue, mp.Symbol, mp.Price, mp.FundingRate, mp.Ts)
			}
		}
	}
}

func (s *Service) pollVenue(ctx context.Context, v port.Venue, out chan<- model.MarkPrice) {
	ticker := time.NewTicker(s.deps.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, sym := range s.deps.Symbols {
			mp, err := v.GetMarkPrice(ctx, sym)
			if err != nil {
				if errors.Is(err, port.ErrUnsupported) {
					return
				}
				log.Debug().Err(err).Str("venue", v.Name()).Str("symbol", sym).Msg("mark price unavailable")
				continue
			}
			select {
			case out <- *mp:
			case <-ctx.Done():
				return
			}
		}
	}
}
