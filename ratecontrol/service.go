package ratecontrol

import (
	"log"
	"os"
	"sync"
)

var (
	svc      *Service
	initOnce sync.Once
)

// Service is the Encore-visible wrapper around the singleton Controller.
//
//encore:service
type Service struct {
	*Controller
}

func initService() (*Service, error) {
	var err error
	initOnce.Do(func() {
		// fetch is wired by appcore.New via SetFetchFn once the provider
		// service has initialized; nil here is safe (Check becomes a no-op)
		// so service construction never depends on init order.
		c := New(DefaultConfig(), nil, log.New(os.Stderr, "", log.LstdFlags))
		svc = &Service{Controller: c}
	})
	return svc, err
}

// Svc returns the package singleton, initializing it on first call.
func Svc() (*Service, error) {
	return initService()
}

// SetFetchFn injects the provider-backed tournament fetcher used by Check().
func (s *Service) SetFetchFn(fn TournamentFetcher) {
	s.mu.Lock()
	s.fetch = fn
	s.mu.Unlock()
}
