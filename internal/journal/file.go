// Package journal implements the append-only newline-delimited snapshot log
// used for warm restart. One JSON record per mutation; replay compacts
// latest-wins, so losing the last unflushed record on crash is acceptable.
package journal

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/yanun0323/logs"
)

// File appends snapshot records to a single log file and reloads them on
// restart. I/O failures are logged, never propagated: in-memory state stays
// authoritative and the next successful write re-synchronizes the file.
type File struct {
	filename string
}

func NewFile() *File {
	return &File{}
}

// Filename returns the currently bound log file path.
func (f *File) Filename() string {
	return f.filename
}

// Reload binds the file and returns every JSON record in it, in order.
// Malformed lines are logged and skipped so one bad record never blocks a
// restart. An empty filename keeps the previous binding.
func (f *File) Reload(filename string) []json.RawMessage {
	if filename != "" {
		f.filename = filename
	}

	fp, err := os.Open(f.filename)
	if err != nil {
		if !os.IsNotExist(err) {
			logs.Errorf("journal reload %s, err: %+v", f.filename, err)
		}
		return nil
	}
	defer fp.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(fp)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		if !json.Valid(line) {
			logs.Errorf("journal broken record %s [%s]", f.filename, line)
			continue
		}
		records = append(records, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		logs.Errorf("journal scan %s, err: %+v", f.filename, err)
	}
	return records
}

// Append writes one record. No-op until a filename is bound via Reload.
func (f *File) Append(v any) {
	if f.filename == "" {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		logs.Errorf("journal marshal, err: %+v", err)
		return
	}

	fp, err := os.OpenFile(f.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logs.Errorf("journal open %s, err: %+v", f.filename, err)
		return
	}
	defer fp.Close()

	if _, err := fp.Write(append(data, '\n')); err != nil {
		logs.Errorf("journal append %s, err: %+v", f.filename, err)
	}
}

// Renew replaces the whole file with the given records. Used after replay
// compaction.
func (f *File) Renew(records []any) {
	if f.filename == "" {
		return
	}

	fp, err := os.Create(f.filename)
	if err != nil {
		logs.Errorf("journal renew %s, err: %+v", f.filename, err)
		return
	}
	defer fp.Close()

	w := bufio.NewWriter(fp)
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			logs.Errorf("journal marshal, err: %+v", err)
			continue
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		logs.Errorf("journal flush %s, err: %+v", f.filename, err)
	}
}
