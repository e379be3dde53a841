package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/kolamai/studio/internal/models"
)

func TestTimelineIsEmpty(t *testing.T) {
	ts := NewTimelineStore()

	if !ts.IsEmpty() {
		t.Error("Expected new timeline to be empty")
	}

	ts.Append(models.NewRenderRecord("outputs/img.png"))

	if ts.IsEmpty() {
		t.Error("Expected timeline with one record to be non-empty")
	}
	if ts.Len() != 1 {
		t.Errorf("Expected 1 record, got %d", ts.Len())
	}
}

func TestTimelineAppendOrder(t *testing.T) {
	ts := NewTimelineStore()

	for i := 0; i < 10; i++ {
		ts.Append(models.NewRenderRecord(fmt.Sprintf("outputs/%d.png", i)))
	}

	records := ts.Records()
	if len(records) != 10 {
		t.Fatalf("Expected 10 records, got %d", len(records))
	}
	for i, record := range records {
		want := fmt.Sprintf("outputs/%d.png", i)
		if record.Image != want {
			t.Errorf("Record %d: expected %s, got %s", i, want, record.Image)
		}
	}
}

func TestTimelineRecordsReturnsCopy(t *testing.T) {
	ts := NewTimelineStore()
	ts.Append(models.NewRecreateRecord("out/r1.png"))

	records := ts.Records()
	records[0].Image = "mutated"

	if ts.Records()[0].Image != "out/r1.png" {
		t.Error("Expected stored record to be unaffected by mutation of the returned slice")
	}
}

func TestTimelineConcurrentAppends(t *testing.T) {
	ts := NewTimelineStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ts.Append(models.NewRenderRecord(fmt.Sprintf("outputs/%d.png", n)))
		}(i)
	}
	wg.Wait()

	if ts.Len() != 50 {
		t.Errorf("Expected 50 records after concurrent appends, got %d", ts.Len())
	}
}
