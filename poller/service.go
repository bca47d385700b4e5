package poller

import (
	"context"
	"log"
	"os"
	"sync"

	"encore.app/pkg/models"
	"encore.app/pkg/pubsub"
)

var (
	svc      *Service
	initOnce sync.Once
)

// Service is the Encore-visible wrapper around the singleton Poller.
//
//encore:service
type Service struct {
	*Poller
}

func noopFetch(ctx context.Context, tournamentID string) ([]models.Match, error) {
	return nil, nil
}

func noopHint() Hint { return Hint{} }

func noopPublish(ctx context.Context, event pubsub.MatchesUpdatedEvent) error { return nil }

func initService() (*Service, error) {
	initOnce.Do(func() {
		p := New(noopFetch, noopHint, noopPublish, log.New(os.Stderr, "", log.LstdFlags))
		svc = &Service{Poller: p}
	})
	return svc, nil
}

// Svc returns the package singleton, initializing it on first call.
func Svc() (*Service, error) {
	return initService()
}

// SetFetchFn injects the real matches fetcher (cache.GetOrFetch wrapping
// provider.Client.Request) once cache and provider have initialized. Called
// once from appcore.New, before Start/Reconcile ever runs.
func (s *Service) SetFetchFn(fn MatchesFetcher) {
	if fn != nil {
		s.fetch = fn
	}
}

// SetHintFn injects the ratecontrol-derived hint resolver.
func (s *Service) SetHintFn(fn HintFn) {
	if fn != nil {
		s.hint = fn
	}
}

// SetPublisher injects the broadcast.Service publish hook.
func (s *Service) SetPublisher(fn Publisher) {
	if fn != nil {
		s.publish = fn
	}
}
