package appcore

import (
	"context"
	"encoding/json"

	"encore.app/cache"
	"encore.app/pkg/models"
	"encore.app/poller"
	"encore.app/provider"
	"encore.app/ratecontrol"
)

// providerGet adapts a provider.Service GET call to cache.Fetcher, the shape
// every C1 GetOrFetch call needs regardless of which entity it's refreshing.
func providerGet(providerSvc *provider.Service, endpoint string) cache.Fetcher {
	return func(ctx context.Context) (json.RawMessage, int, error) {
		resp, err := providerSvc.Request(ctx, "GET", endpoint, nil)
		if err != nil {
			return nil, 0, err
		}
		return json.RawMessage(resp.Body), resp.Status, nil
	}
}

// tournamentFetcher builds the C3 TournamentFetcher: a cached read of the
// full tournament list, decoded into the typed entity Check()'s
// classification algorithm consumes. Grounded on cache-manager.Service's
// cache-aside Get/fetchWithFallback shape, generalized to the typed
// (CacheType, key) store C1 implements.
func tournamentFetcher(cacheSvc *cache.Service, providerSvc *provider.Service) ratecontrol.TournamentFetcher {
	return func(ctx context.Context) ([]models.Tournament, error) {
		raw, _, err := cacheSvc.GetOrFetch(ctx, models.CacheTournamentsList, "list", providerGet(providerSvc, "/tournaments"), cache.Options{})
		if err != nil {
			return nil, err
		}
		return provider.DecodeTournaments(raw)
	}
}

// matchesFetcher builds the C5 MatchesFetcher: a cached read of one
// tournament's matches, decoded the same way.
func matchesFetcher(cacheSvc *cache.Service, providerSvc *provider.Service) poller.MatchesFetcher {
	return func(ctx context.Context, tournamentID string) ([]models.Match, error) {
		endpoint := "/tournaments/" + tournamentID + "/matches"
		raw, _, err := cacheSvc.GetOrFetch(ctx, models.CacheMatches, tournamentID, providerGet(providerSvc, endpoint), cache.Options{})
		if err != nil {
			return nil, err
		}
		return provider.DecodeMatches(raw)
	}
}
