package lock

import "testing"

func TestKeyIsStable(t *testing.T) {
	t.Parallel()

	if Key("booking", "room-1") != Key("booking", "room-1") {
		t.Fatalf("expected identical keys for identical input")
	}
	if Key("booking", "room-1") == Key("booking", "room-2") {
		t.Fatalf("expected distinct keys for distinct rooms")
	}
	if Key("booking", "room-1") == Key("waitlist", "room-1") {
		t.Fatalf("expected namespaces to separate keys")
	}
}

func TestKeysAreSortedAndUnique(t *testing.T) {
	t.Parallel()

	keys := Keys("booking", []string{"room-b", "room-a", "room-b", "room-c"})
	if len(keys) != 3 {
		t.Fatalf("expected 3 distinct keys, got %d", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("expected ascending keys, got %v", keys)
		}
	}
}
