package arrowexport

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// WriteStream writes recs to w as one Arrow IPC stream under the schema of
// the first record.
func WriteStream(w io.Writer, mem memory.Allocator, recs ...arrow.Record) error {
	if len(recs) == 0 {
		return fmt.Errorf("no records to write")
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	schema := recs[0].Schema()
	wr := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	for i, rec := range recs {
		if err := wr.Write(rec); err != nil {
			wr.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// ReadStream reads every record of an IPC stream. The caller releases
// the returned records.
func ReadStream(r io.Reader, mem memory.Allocator) ([]arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	defer rdr.Release()

	var out []arrow.Record
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		out = append(out, rec)
	}
	if err := rdr.Err(); err != nil && err != io.EOF {
		for _, rec := range out {
			rec.Release()
		}
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	return out, nil
}

// Sink collects named records in memory until they are flushed. It is safe
// for concurrent use.
type Sink struct {
	mu   sync.RWMutex
	recs map[string][]arrow.Record
}

func NewSink() *Sink {
	return &Sink{recs: make(map[string][]arrow.Record)}
}

// Put retains rec under name.
func (s *Sink) Put(name string, rec arrow.Record) {
	rec.Retain()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[name] = append(s.recs[name], rec)
}

// Names lists the stored streams in sorted order.
func (s *Sink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.recs))
	for k := range s.recs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Rows is the total row count stored under name.
func (s *Sink) Rows(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, rec := range s.recs[name] {
		n += rec.NumRows()
	}
	return n
}

// Flush writes the stream stored under name to w. The records are retained
// for the duration of the write, so a concurrent Reset cannot free them.
func (s *Sink) Flush(w io.Writer, name string, mem memory.Allocator) error {
	s.mu.RLock()
	recs := slices.Clone(s.recs[name])
	for _, rec := range recs {
		rec.Retain()
	}
	s.mu.RUnlock()
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	if len(recs) == 0 {
		return fmt.Errorf("no records stored under %q", name)
	}
	return WriteStream(w, mem, recs...)
}

// FlushFile writes the stream stored under name to a new file at path.
func (s *Sink) FlushFile(path, name string, mem memory.Allocator) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := s.Flush(f, name, mem); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Reset releases every stored record.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, recs := range s.recs {
		for _, rec := range recs {
			rec.Release()
		}
	}
	s.recs = make(map[string][]arrow.Record)
}
