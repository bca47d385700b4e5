// Package appcore is the composition root spec.md §9 calls for: rather than
// leaving each component's cross-service dependency as process-wide mutable
// package state (the teacher's own services ship Set* setters that nothing
// in the teacher ever actually calls), AppCore assembles every singleton
// once and wires the setters itself, producing a single explicit value.
//
// Grounded on the teacher's initService/sync.Once singleton idiom, repeated
// here per dependency and then collected into one struct instead of staying
// scattered across seven package-level vars.
package appcore

import (
	"fmt"

	"encore.app/broadcast"
	"encore.app/cache"
	"encore.app/mutation"
	"encore.app/poller"
	"encore.app/provider"
	"encore.app/ratecontrol"
	"encore.app/rategate"
)

// AppCore holds a handle to every component service. Handlers that need
// cross-component access (admin endpoints, tests) can take an *AppCore
// instead of reaching for package-level singletons.
type AppCore struct {
	Cache       *cache.Service
	Gate        *rategate.Service
	RateControl *ratecontrol.Service
	Provider    *provider.Service
	Poller      *poller.Service
	Broadcast   *broadcast.Service
	Mutation    *mutation.Service
}

// Service is the Encore-visible wrapper so composition runs exactly once at
// app startup via the generated initService hook, the same mechanism every
// other component singleton uses.
//
//encore:service
type Service struct {
	*AppCore
}

func initService() (*Service, error) {
	core, err := New()
	if err != nil {
		return nil, err
	}
	return &Service{AppCore: core}, nil
}

// New assembles every component singleton and wires the cross-service hooks
// spec.md's components depend on. Each Svc() call is idempotent (sync.Once
// underneath), so New can run regardless of what order Encore happens to
// initialize services in.
func New() (*AppCore, error) {
	cacheSvc, err := cache.Svc()
	if err != nil {
		return nil, fmt.Errorf("appcore: cache: %w", err)
	}
	gateSvc, err := rategate.Svc()
	if err != nil {
		return nil, fmt.Errorf("appcore: rategate: %w", err)
	}
	rateSvc, err := ratecontrol.Svc()
	if err != nil {
		return nil, fmt.Errorf("appcore: ratecontrol: %w", err)
	}
	providerSvc, err := provider.Svc()
	if err != nil {
		return nil, fmt.Errorf("appcore: provider: %w", err)
	}
	pollerSvc, err := poller.Svc()
	if err != nil {
		return nil, fmt.Errorf("appcore: poller: %w", err)
	}
	broadcastSvc, err := broadcast.Svc()
	if err != nil {
		return nil, fmt.Errorf("appcore: broadcast: %w", err)
	}
	mutationSvc, err := mutation.Svc()
	if err != nil {
		return nil, fmt.Errorf("appcore: mutation: %w", err)
	}

	// C2 <- C3: the gate's MinDelay/Submit floor and dev-mode bypass both
	// follow the adaptive controller's current classification.
	gateSvc.SetEffectiveRateFn(rateSvc.EffectiveRate)
	gateSvc.SetDevModeFn(rateSvc.DevModeActive)

	// C4 <- C2: every provider call is dispatched through the single-flight
	// gate, never directly against http.Client.
	providerSvc.SetGate(gateSvc.Gate)

	// C1 <- C3: the cache store shortens TTLs while a tournament is ACTIVE.
	cacheSvc.SetActiveModeFn(func() bool {
		return rateSvc.CurrentMode() == ratecontrol.ModeActive
	})

	// C3 <- C1/C4: Check()'s classification reads a cached, provider-backed
	// tournament list rather than calling the provider directly.
	rateSvc.SetFetchFn(tournamentFetcher(cacheSvc, providerSvc))

	// C5 <- C1/C4: each tick reads a cached, provider-backed match list.
	pollerSvc.SetFetchFn(matchesFetcher(cacheSvc, providerSvc))
	// C5 <- C3: the hint resolver tells the poller which tournament to
	// target, at what cadence, for the current mode.
	pollerSvc.SetHintFn(func() poller.Hint {
		st := rateSvc.Status()
		return poller.Hint{
			TournamentID: st.ActiveTournamentID,
			Active:       st.Mode == ratecontrol.ModeActive,
			DevMode:      st.DevModeActive,
		}
	})
	// C5 <- C6: a detected delta is handed straight to the broadcast hub.
	pollerSvc.SetPublisher(broadcastSvc.Publish)

	// C3 -> C5: reconcile the tick schedule whenever the mode or dev-mode
	// state changes, replacing the source's bare setTimeout callback with
	// an explicit notification the poller can act on synchronously.
	rateSvc.SetModeChangeFn(func(ratecontrol.Mode) { pollerSvc.Reconcile() })
	rateSvc.SetDevModeFn(func(bool) { pollerSvc.Reconcile() })

	// C7 <- C4, C1, C5, C3, C6: the mutation dispatcher's five-step contract
	// touches every other component in turn.
	mutationSvc.SetClient(providerSvc.Client)
	mutationSvc.SetCacheStore(cacheSvc)
	mutationSvc.SetPoller(pollerSvc)
	mutationSvc.SetRateController(rateSvc)
	mutationSvc.SetPublisher(broadcastSvc)

	return &AppCore{
		Cache:       cacheSvc,
		Gate:        gateSvc,
		RateControl: rateSvc,
		Provider:    providerSvc,
		Poller:      pollerSvc,
		Broadcast:   broadcastSvc,
		Mutation:    mutationSvc,
	}, nil
}
