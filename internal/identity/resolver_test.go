package identity

import (
	"errors"
	"os"
	"testing"

	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpFile := t.TempDir() + "/identity-test.db"
	t.Cleanup(func() {
		os.Remove(tmpFile)
		os.Remove(tmpFile + "-shm")
		os.Remove(tmpFile + "-wal")
	})

	s, err := store.Open(tmpFile)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestGenerateID(t *testing.T) {
	testCases := []struct {
		name      string
		firstName string
		lastName  string
		expected  string
	}{
		{"plain name", "Max", "Verstappen", "drv:max-verstappen"},
		{"accented name kept", "Sergio", "Pérez", "drv:sergio-pérez"},
		{"inner space becomes hyphen", "Nyck", "de Vries", "drv:nyck-de-vries"},
		{"apostrophe stripped", "Pat", "O'Ward", "drv:pat-oward"},
		{"slash becomes hyphen", "A/B", "Test", "drv:a-b-test"},
		{"case folded", "LEWIS", "Hamilton", "drv:lewis-hamilton"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := GenerateID(tc.firstName, tc.lastName)
			if got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestResolveAliasPrecedence(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertDriver(&store.Driver{DriverID: "drv:max-verstappen-jnr"}); err != nil {
		t.Fatalf("failed to seed driver: %v", err)
	}
	if err := s.UpsertDriverAlias("Max Verstappen", "drv:max-verstappen-jnr"); err != nil {
		t.Fatalf("failed to seed alias: %v", err)
	}

	r, err := NewResolver(s)
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	// Alias must win over the synthesized drv:max-verstappen
	got, err := r.Resolve("Max", "Verstappen")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "drv:max-verstappen-jnr" {
		t.Errorf("expected alias hit drv:max-verstappen-jnr, got %q", got)
	}

	// Reversed name order must hit the same alias
	got, err = r.Resolve("Verstappen", "Max")
	if err != nil {
		t.Fatalf("reversed resolve failed: %v", err)
	}
	if got != "drv:max-verstappen-jnr" {
		t.Errorf("expected reversed-order alias hit, got %q", got)
	}
}

func TestResolveSynthesizesOnMiss(t *testing.T) {
	s := openTestStore(t)

	r, err := NewResolver(s)
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	got, err := r.Resolve("Oscar", "Piastri")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "drv:oscar-piastri" {
		t.Errorf("expected synthesized drv:oscar-piastri, got %q", got)
	}
}

func TestResolveExistingRequiresKnownDriver(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertDriver(&store.Driver{DriverID: "drv:lando-norris"}); err != nil {
		t.Fatalf("failed to seed driver: %v", err)
	}

	r, err := NewResolver(s)
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	if _, ok := r.ResolveExisting("Lando", "Norris"); !ok {
		t.Error("expected known driver to resolve")
	}
	if _, ok := r.ResolveExisting("Not", "Adriver"); ok {
		t.Error("expected unknown driver to be rejected")
	}
}

func TestResolveCollisionIsLoud(t *testing.T) {
	s := openTestStore(t)

	r, err := NewResolver(s)
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	// Two distinct real names sanitizing to the same ID
	if _, err := r.Resolve("Jo", "Anna-Smith"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	_, err = r.Resolve("Jo Anna", "Smith")
	if !errors.Is(err, util.ErrAmbiguousIdentity) {
		t.Fatalf("expected ErrAmbiguousIdentity, got %v", err)
	}

	if len(r.Collisions()) != 1 {
		t.Errorf("expected 1 recorded collision, got %d", len(r.Collisions()))
	}
}

func TestResolveSameNameTwiceIsNotACollision(t *testing.T) {
	s := openTestStore(t)

	r, err := NewResolver(s)
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve("Charles", "Leclerc"); err != nil {
			t.Fatalf("resolve %d failed: %v", i, err)
		}
	}
	if len(r.Collisions()) != 0 {
		t.Errorf("expected no collisions, got %d", len(r.Collisions()))
	}
}
