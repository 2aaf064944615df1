package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"gardenshop-tracker/config"
	"gardenshop-tracker/internal/model"
	"gardenshop-tracker/internal/notification"
	"gardenshop-tracker/internal/parse"
	"gardenshop-tracker/internal/report"
	"gardenshop-tracker/internal/store"
	"gardenshop-tracker/internal/tracker"
)

// Fetcher retrieves one upstream payload.
type Fetcher interface {
	Fetch(ctx context.Context) (*model.Payload, error)
}

// Dispatcher accepts restock events for delivery.
type Dispatcher interface {
	Dispatch(event notification.RestockEvent) bool
}

// Service runs the poll loop. It owns the tracker state; nothing else reads
// or writes it.
type Service struct {
	cfg        *config.Config
	fetcher    Fetcher
	tracker    *tracker.Tracker
	state      *tracker.State
	store      store.Store // optional
	dispatcher Dispatcher  // optional
	out        io.Writer
	clock      clockwork.Clock
}

// NewService creates a poll loop. store and dispatcher may be nil.
func NewService(cfg *config.Config, fetcher Fetcher, s store.Store, dispatcher Dispatcher, out io.Writer) (*Service, error) {
	mode, err := parse.ParseMode(cfg.Tracker.ParseMode)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:     cfg,
		fetcher: fetcher,
		tracker: tracker.New(tracker.Options{
			Interval:    cfg.Scraper.Interval,
			Mode:        mode,
			ClampOnTick: !cfg.Tracker.AllowNegativeDrift,
		}),
		state:      tracker.NewState(),
		store:      s,
		dispatcher: dispatcher,
		out:        out,
		clock:      clockwork.NewRealClock(),
	}, nil
}

// State exposes the tracker state for inspection.
func (s *Service) State() *tracker.State {
	return s.state
}

// Run polls until ctx is cancelled. Every failure other than cancellation is
// logged and retried after the regular interval.
func (s *Service) Run(ctx context.Context) {
	interval := s.cfg.Scraper.Interval
	fmt.Fprintf(s.out, "Watching shop API: %s - refresh every %s\n\n", s.cfg.Scraper.URL, interval)

	if s.step(ctx) {
		return
	}

	timer := s.clock.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("poll loop shutting down")
			return
		case <-timer.Chan():
			if s.step(ctx) {
				return
			}
			timer.Reset(interval)
		}
	}
}

// step runs one poll and reports whether the loop should stop.
func (s *Service) step(ctx context.Context) bool {
	err := s.PollOnce(ctx)
	if err == nil {
		return false
	}
	if ctx.Err() != nil {
		log.Info().Msg("poll loop shutting down")
		return true
	}

	var (
		transportErr *TransportError
		shapeErr     *model.ShapeError
		formatErr    *parse.FormatError
	)
	switch {
	case errors.As(err, &transportErr):
		log.Warn().Err(err).Int("status", transportErr.StatusCode).Msg("fetch failed; retrying next tick")
	case errors.As(err, &shapeErr), errors.As(err, &formatErr):
		log.Warn().Err(err).Msg("payload rejected; retrying next tick")
	default:
		log.Error().Err(err).Msg("poll failed; retrying next tick")
	}
	return false
}

// PollOnce fetches one payload, applies it, prints the report, publishes the
// snapshot and dispatches restock alerts.
func (s *Service) PollOnce(ctx context.Context) error {
	payload, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	transitions, applyErr := s.tracker.Apply(s.state, payload, now)
	errs := []error{applyErr}

	if err := report.Render(s.out, now, s.state); err != nil {
		errs = append(errs, fmt.Errorf("failed to render report: %w", err))
	}

	if s.store != nil {
		if err := s.store.SaveShops(ctx, s.state.Shops()); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish snapshot: %w", err))
		}
	}

	s.dispatchRestocks(transitions)

	return errors.Join(errs...)
}

func (s *Service) dispatchRestocks(transitions []tracker.Transition) {
	if s.dispatcher == nil {
		return
	}
	for _, tr := range transitions {
		if tr.Kind != tracker.Restock || tr.First {
			continue
		}
		shop, _ := s.state.Shop(tr.Key)
		if !s.dispatcher.Dispatch(notification.RestockEvent{Key: tr.Key, Items: shop.Items}) {
			log.Warn().Str("shop", string(tr.Key)).Msg("notification queue full; dropping restock alert")
		}
	}
}
