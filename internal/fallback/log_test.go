package fallback

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/msaad732/meme-coin/internal/models"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "data", "messages.jsonl"))
}

func record(ts int64, content string) *models.Record {
	return &models.Record{
		Timestamp:   ts,
		ChannelID:   42,
		ChannelName: models.StringPtr("general"),
		AuthorID:    7,
		Author:      "alice",
		Content:     content,
	}
}

func TestAppend_WritesOneLine(t *testing.T) {
	l := testLog(t)

	if err := l.Append(record(1000, "gm 🚀 <moon>")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	want := `{"ts":1000,"channel_id":42,"channel_name":"general","author_id":7,"author":"alice","content":"gm 🚀 <moon>"}` + "\n"
	if string(data) != want {
		t.Errorf("line = %q\nwant   %q", data, want)
	}
}

func TestReadAll_MissingFile(t *testing.T) {
	l := testLog(t)

	records, skipped, err := l.ReadAll(10)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 0 || skipped != 0 {
		t.Errorf("ReadAll on missing file = (%d records, %d skipped), want (0, 0)", len(records), skipped)
	}
}

func TestReadAll_RoundTrip(t *testing.T) {
	l := testLog(t)

	rec := record(1000, "gm")
	rec.ChannelName = nil
	if err := l.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, _, err := l.ReadAll(0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if got.Timestamp != 1000 || got.ChannelID != 42 || got.AuthorID != 7 || got.Author != "alice" || got.Content != "gm" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.ChannelName != nil {
		t.Errorf("ChannelName = %q, want nil", *got.ChannelName)
	}
}

func TestReadAll_SortsAndLimits(t *testing.T) {
	l := testLog(t)

	for _, ts := range []int64{100, 300, 200, 500, 400} {
		if err := l.Append(record(ts, "wagmi")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, _, err := l.ReadAll(3)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []int64{500, 400, 300}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, ts := range want {
		if records[i].Timestamp != ts {
			t.Errorf("records[%d].Timestamp = %d, want %d", i, records[i].Timestamp, ts)
		}
	}

	all, _, _ := l.ReadAll(0)
	if len(all) != 5 {
		t.Errorf("ReadAll(0) returned %d records, want 5", len(all))
	}
}

func TestReadAll_TiesNewestLineFirst(t *testing.T) {
	l := testLog(t)

	for _, content := range []string{"first", "second", "third"} {
		if err := l.Append(record(1000, content)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, _, err := l.ReadAll(0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if records[0].Content != "third" || records[2].Content != "first" {
		t.Errorf("tie order = [%s %s %s], want [third second first]",
			records[0].Content, records[1].Content, records[2].Content)
	}
}

func TestReadAll_SkipsMalformedLines(t *testing.T) {
	l := testLog(t)

	if err := l.Append(record(100, "ok")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	f.WriteString("{\"ts\": 200, \"content\": \n")
	f.WriteString("\n   \n")
	f.WriteString("not json at all\n")
	f.WriteString("null\n")
	f.WriteString("{}\n")
	f.WriteString(`{"ts": 250, "channel_id": 42, "channel_name": null, "author_id": 7, "content": "no author"}` + "\n")
	f.Close()
	if err := l.Append(record(300, "also ok")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, skipped, err := l.ReadAll(0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if skipped != 5 {
		t.Errorf("skipped = %d, want 5", skipped)
	}
	if len(records) != 2 || records[0].Timestamp != 300 || records[1].Timestamp != 100 {
		t.Errorf("records = %+v", records)
	}
}

func TestReadAll_OversizedLineIsSkipped(t *testing.T) {
	l := testLog(t)

	if err := l.Append(record(100, "before")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	f.WriteString(strings.Repeat("x", 2<<20) + "\n")
	f.Close()
	if err := l.Append(record(200, "after")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, skipped, err := l.ReadAll(0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(records) != 2 || records[0].Content != "after" || records[1].Content != "before" {
		t.Errorf("records = %+v", records)
	}
}

func TestAppend_Concurrent(t *testing.T) {
	l := testLog(t)

	const writers, perWriter = 8, 25
	long := strings.Repeat("to the moon ", 200)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := l.Append(record(int64(w*perWriter+i), long)); err != nil {
					t.Errorf("Append: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	records, skipped, err := l.ReadAll(0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0 (interleaved lines)", skipped)
	}
	if len(records) != writers*perWriter {
		t.Errorf("got %d records, want %d", len(records), writers*perWriter)
	}
}
