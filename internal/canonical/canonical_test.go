package canonical

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/core"
)

var testDate = time.Date(2000, 10, 2, 10, 30, 0, 0, time.FixedZone("", -7*3600))

func TestFingerprint_FolderIndependent(t *testing.T) {
	a := Fingerprint("alice.smith@enron.com", testDate, "Q3", "body text")
	b := Fingerprint("Alice.Smith@enron.com ", testDate, " Q3 ", "body text")
	if a != b {
		t.Errorf("normalized inputs produced different fingerprints: %s vs %s", a, b)
	}
	c := Fingerprint("alice.smith@enron.com", testDate, "Q3", "other body")
	if a == c {
		t.Error("distinct bodies produced the same fingerprint")
	}
}

func TestStore_DeduplicatesAcrossFolders(t *testing.T) {
	store := NewStore(zap.NewNop())
	fp := Fingerprint("alice.smith@enron.com", testDate, "Q3", "body")

	first := &core.CanonicalMessage{Fingerprint: fp, Date: testDate}
	if created := store.Add(first, "smith-a/sent"); !created {
		t.Fatal("first Add() = false, want true")
	}
	second := &core.CanonicalMessage{Fingerprint: fp, Date: testDate}
	if created := store.Add(second, "jones-b/inbox"); created {
		t.Fatal("duplicate Add() = true, want false")
	}
	// Same folder again is a no-op.
	store.Add(second, "jones-b/inbox")

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	msg, ok := store.Get(fp)
	if !ok {
		t.Fatal("Get() missing fingerprint")
	}
	if len(msg.Folders) != 2 {
		t.Errorf("Folders = %v, want two memberships", msg.Folders)
	}
}

func TestStore_SortedIsDeterministic(t *testing.T) {
	build := func(order []int) []string {
		store := NewStore(zap.NewNop())
		dates := []time.Time{
			testDate.Add(2 * time.Hour),
			testDate,
			testDate.Add(time.Hour),
		}
		for _, i := range order {
			fp := Fingerprint("a@enron.com", dates[i], "s", string(rune('a'+i)))
			store.Add(&core.CanonicalMessage{Fingerprint: fp, Date: dates[i]}, "f")
		}
		var fps []string
		for _, msg := range store.Sorted() {
			fps = append(fps, msg.Fingerprint)
		}
		return fps
	}

	a := build([]int{0, 1, 2})
	b := build([]int{2, 0, 1})
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("expected 3 messages, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Sorted() order depends on insertion order: %v vs %v", a, b)
		}
	}
}
