package usecase

import (
	"fmt"
	"sync"
	"testing"
)

func TestDecisionLog(t *testing.T) {
	t.Run("records entries oldest first", func(t *testing.T) {
		log := NewDecisionLog(5)
		log.Record(Decision{Accepted: true, ExternalKey: "a"})
		log.Record(Decision{Accepted: false, ExternalKey: "b"})

		entries := log.Entries()
		if len(entries) != 2 {
			t.Fatalf("len(entries) = %d, want 2", len(entries))
		}
		if entries[0].ExternalKey != "a" || entries[1].ExternalKey != "b" {
			t.Errorf("entries out of order: %v", entries)
		}
		if entries[0].At.IsZero() {
			t.Error("Record should stamp a timestamp")
		}
	})

	t.Run("evicts oldest once full", func(t *testing.T) {
		log := NewDecisionLog(3)
		for i := 0; i < 5; i++ {
			log.Record(Decision{ExternalKey: fmt.Sprintf("k%d", i)})
		}

		entries := log.Entries()
		if len(entries) != 3 {
			t.Fatalf("len(entries) = %d, want 3", len(entries))
		}
		want := []string{"k2", "k3", "k4"}
		for i, entry := range entries {
			if entry.ExternalKey != want[i] {
				t.Errorf("entries[%d] = %s, want %s", i, entry.ExternalKey, want[i])
			}
		}
	})

	t.Run("lifetime stats outlive eviction", func(t *testing.T) {
		log := NewDecisionLog(2)
		for i := 0; i < 10; i++ {
			log.Record(Decision{Accepted: i%2 == 0})
		}

		total, accepted := log.Stats()
		if total != 10 {
			t.Errorf("total = %d, want 10", total)
		}
		if accepted != 5 {
			t.Errorf("accepted = %d, want 5", accepted)
		}
		if rate := log.AcceptRate(); rate != 0.5 {
			t.Errorf("AcceptRate() = %v, want 0.5", rate)
		}
	})

	t.Run("empty log has zero accept rate", func(t *testing.T) {
		log := NewDecisionLog(0)
		if rate := log.AcceptRate(); rate != 0.0 {
			t.Errorf("AcceptRate() = %v, want 0.0", rate)
		}
	})

	t.Run("concurrent recording is safe", func(t *testing.T) {
		log := NewDecisionLog(16)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					log.Record(Decision{Accepted: true})
					log.Entries()
				}
			}()
		}
		wg.Wait()

		total, accepted := log.Stats()
		if total != 800 || accepted != 800 {
			t.Errorf("Stats() = (%d, %d), want (800, 800)", total, accepted)
		}
	})
}
