package model

import (
	"testing"

	"github.com/glebarez/sqlite"
)

// newTestStore opens an in-memory store for tests inside this package. The
// exported test helpers live in the fixtures package, which cannot be used
// here without an import cycle.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &Config{
		Basedir:      t.TempDir(),
		CookieSecret: "model-test-secret",
		Mode:         "test",
	}
	store, err := Open(sqlite.Open(":memory:"), cfg)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return store
}

func mustSaveClient(t *testing.T, store *Store) *Client {
	t.Helper()
	c := &Client{
		RaisonSociale: "Transports Durand SAS",
		Email:         "compta@durand.example",
		Ville:         "Nantes",
		Actif:         true,
	}
	if err := store.SaveClient(c); err != nil {
		t.Fatalf("save client: %v", err)
	}
	return c
}
