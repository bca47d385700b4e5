package broadcast

import (
	"context"
	"log"
	"os"
	"sync"

	"encore.app/pkg/pubsub"
)

var (
	svc      *Service
	initOnce sync.Once
)

// Service is the Encore-visible wrapper around the singleton Hub.
//
//encore:service
type Service struct {
	hub *Hub
}

func initService() (*Service, error) {
	initOnce.Do(func() {
		svc = &Service{hub: NewHub(log.New(os.Stderr, "", log.LstdFlags))}
	})
	return svc, nil
}

// Svc returns the package singleton, initializing it on first call.
func Svc() (*Service, error) {
	return initService()
}

// Publish adapts Hub.BroadcastMatchesUpdate to poller.Publisher's signature,
// so appcore can wire it directly via poller.Service.SetPublisher.
func (s *Service) Publish(ctx context.Context, event pubsub.MatchesUpdatedEvent) error {
	s.hub.BroadcastMatchesUpdate(event)
	return nil
}

// PublishLifecycle adapts Hub.BroadcastTournamentUpdate to the lifecycle
// event mutation.go publishes after a tournament lifecycle action.
func (s *Service) PublishLifecycle(ctx context.Context, event pubsub.TournamentLifecycleEvent) error {
	s.hub.BroadcastTournamentUpdate(event)
	return nil
}

// Hub exposes the singleton hub for admin-surface endpoints (admin.go).
func (s *Service) Hub() *Hub {
	return s.hub
}
