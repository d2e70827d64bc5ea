package caption

import (
	"fmt"
	"testing"

	"captionkit/core"
)

func TestHistoryKeepsLastN(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(core.Caption{ID: fmt.Sprintf("c%d", i)})
	}
	got := h.Snapshot()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"c2", "c3", "c4"} {
		if got[i].ID != want {
			t.Errorf("item %d = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestHistoryIgnoresDuplicates(t *testing.T) {
	h := NewHistory(0)
	if !h.Add(core.Caption{ID: "x"}) {
		t.Fatal("first add rejected")
	}
	if h.Add(core.Caption{ID: "x"}) {
		t.Error("duplicate caption accepted")
	}
	if h.Len() != 1 {
		t.Errorf("len = %d, want 1", h.Len())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	h := NewHistory(2)
	h.Add(core.Caption{ID: "a", OriginalText: "one"})
	snap := h.Snapshot()
	snap[0].OriginalText = "changed"
	if h.Snapshot()[0].OriginalText != "one" {
		t.Error("snapshot aliases history storage")
	}
}
