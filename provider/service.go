package provider

import (
	"log"
	"os"
	"sync"

	"encore.dev/storage/sqldb"

	"encore.app/rategate"
)

var providerDB = sqldb.Named("provider_db")

var (
	svc      *Service
	initOnce sync.Once
)

// noopSealer satisfies TokenSealer without any actual cryptography, per the
// Non-goals decision recorded in DESIGN.md: this core never implements a
// cipher, only the IV/Sealed-carrying contract a real sealer would fill in.
type noopSealer struct{}

func (noopSealer) Seal(plaintext []byte) ([]byte, []byte, error) {
	return []byte{}, plaintext, nil
}

func (noopSealer) Open(iv, sealed []byte) ([]byte, error) {
	return sealed, nil
}

// Service is the Encore-visible wrapper around the singleton Client.
//
//encore:service
type Service struct {
	*Client
	store *TokenStore
}

func initService() (*Service, error) {
	var err error
	initOnce.Do(func() {
		var store *TokenStore
		store, err = NewTokenStore(providerDB, noopSealer{})
		if err != nil {
			return
		}

		baseURL := os.Getenv("PROVIDER_BASE_URL")
		if baseURL == "" {
			baseURL = "https://api.challonge.com/v2.1"
		}
		legacyKey := os.Getenv("PROVIDER_LEGACY_KEY")

		// gate is wired by appcore.New via SetGate once rategate has
		// initialized; appcore must do so before any Request call reaches
		// this client, since a nil gate has no Submit to dispatch through.
		client := NewClient(baseURL, legacyKey, store, nil, log.New(os.Stderr, "", log.LstdFlags))
		svc = &Service{Client: client, store: store}
	})
	return svc, err
}

// Svc returns the package singleton, initializing it on first call.
func Svc() (*Service, error) {
	return initService()
}

// SetGate injects the live rategate.Gate once it has initialized.
func (s *Service) SetGate(g *rategate.Gate) {
	s.gate = g
}
