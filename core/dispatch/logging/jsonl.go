package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// maxLine bounds one encoded decision. Batch records with many candidates
// exceed bufio's 64KiB default.
const maxLine = 4 << 20

// JSONLStore appends one JSON document per line to a file held open for
// the store's lifetime.
type JSONLStore struct {
	path string

	mu  sync.Mutex
	out *os.File
	enc *json.Encoder
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	return &JSONLStore{path: path, out: f, enc: json.NewEncoder(f)}, nil
}

func (s *JSONLStore) Append(_ context.Context, rec LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return os.ErrClosed
	}
	return s.enc.Encode(rec)
}

// Query reads the whole file and filters in memory. Lines that do not
// decode, such as a torn final write, are ignored.
func (s *JSONLStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []LogRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(nil, maxLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec LogRecord
		if json.Unmarshal(sc.Bytes(), &rec) == nil && q.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, sc.Err()
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	return err
}
