package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestReloadSkipsBrokenLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.log")
	content := `{"timestamp":1,"size":2}
not json
{"timestamp":2,"size":3
{"timestamp":3,"size":4}

`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFile()
	records := f.Reload(path)
	if len(records) != 2 {
		t.Fatalf("expected 2 valid records, got %d", len(records))
	}

	var first struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(records[0], &first); err != nil {
		t.Fatal(err)
	}
	if first.Timestamp != 1 {
		t.Fatalf("record order broken, got timestamp %d", first.Timestamp)
	}
}

func TestAppendThenReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.log")

	f := NewFile()
	f.Reload(path)
	f.Append(map[string]any{"timestamp": 1, "size": 0.5})
	f.Append(map[string]any{"timestamp": 2, "size": 0.25})

	records := NewFile().Reload(path)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestAppendWithoutFilenameIsNoop(t *testing.T) {
	f := NewFile()
	f.Append(map[string]any{"timestamp": 1})
	if f.Filename() != "" {
		t.Fatalf("filename should stay empty, got %q", f.Filename())
	}
}

func TestRenewRewritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.log")

	f := NewFile()
	f.Reload(path)
	for i := 0; i < 5; i++ {
		f.Append(map[string]any{"timestamp": i})
	}

	f.Renew([]any{map[string]any{"timestamp": 99}})
	records := f.Reload(path)
	if len(records) != 1 {
		t.Fatalf("expected compacted file with 1 record, got %d", len(records))
	}
}
