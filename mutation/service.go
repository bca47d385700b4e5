package mutation

import (
	"log"
	"os"
	"sync"

	"encore.dev/storage/sqldb"
)

var mutationDB = sqldb.Named("mutation_db")

var (
	svc      *Service
	initOnce sync.Once
)

// Service is the Encore-visible wrapper around the singleton Dispatcher.
// Cross-service dependencies (provider client, cache store, poller,
// rate controller, lifecycle publisher) are injected afterwards by
// appcore.New via the Set* methods below, matching cache.Service's
// SetActiveModeFn setter-injection idiom.
//
//encore:service
type Service struct {
	*Dispatcher
}

func initService() (*Service, error) {
	var err error
	initOnce.Do(func() {
		var audit *AuditLogger
		audit, err = NewAuditLogger(mutationDB)
		if err != nil {
			return
		}
		d := New(nil, nil, nil, nil, nil, audit, log.New(os.Stderr, "", log.LstdFlags))
		svc = &Service{Dispatcher: d}
	})
	return svc, err
}

// Svc returns the package singleton, initializing it on first call.
func Svc() (*Service, error) {
	return initService()
}

// SetClient wires the provider client (C4).
func (s *Service) SetClient(c providerClient) {
	if c != nil {
		s.client = c
	}
}

// SetCacheStore wires the cache service (C1).
func (s *Service) SetCacheStore(c cacheStore) {
	if c != nil {
		s.cache = c
	}
}

// SetPoller wires the match poller's immediate-repoll hook (C5).
func (s *Service) SetPoller(p matchRepoller) {
	if p != nil {
		s.poller = p
	}
}

// SetRateController wires the adaptive controller's recheck hook (C3).
func (s *Service) SetRateController(r recheckScheduler) {
	if r != nil {
		s.rate = r
	}
}

// SetPublisher wires the broadcast hub's lifecycle-event publish path (C6).
func (s *Service) SetPublisher(p lifecyclePublisher) {
	if p != nil {
		s.publish = p
	}
}
