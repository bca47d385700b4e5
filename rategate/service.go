package rategate

import (
	"log"
	"os"
	"sync"
)

var (
	svc      *Gate
	initOnce sync.Once
)

// Service is the Encore-visible wrapper around the singleton Gate. Kept as a
// distinct named type (rather than exporting *Gate as the service) so the
// //encore:service annotation attaches to a type this package owns, matching
// the teacher's one-struct-per-service convention.
//
//encore:service
type Service struct {
	*Gate
}

func initService() (*Service, error) {
	initOnce.Do(func() {
		svc = NewGate(nil, nil, log.New(os.Stderr, "", log.LstdFlags))
	})
	return &Service{Gate: svc}, nil
}

// Svc returns the package singleton, initializing it on first call.
func Svc() (*Service, error) {
	return initService()
}

// SetEffectiveRateFn and SetDevModeFn wire C3's hooks into the gate after
// appcore.New constructs both services, mirroring cache.Service's
// SetActiveModeFn setter-injection.
func (s *Service) SetEffectiveRateFn(fn func() int) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.effectiveRateFn = fn
	s.mu.Unlock()
}

func (s *Service) SetDevModeFn(fn func() bool) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.devModeFn = fn
	s.mu.Unlock()
}
