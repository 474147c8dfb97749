// Package journal keeps an append-only JSONL record of swap results so that
// timed-out transactions can be followed up after the process exits.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ammswap/internal/swap"
	"ammswap/internal/txbuilder"
)

type Store struct {
	path string
	mu   sync.Mutex
	last *swap.Report
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Record appends one line per result and syncs it to disk.
func (s *Store) Record(ctx context.Context, rep swap.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal open: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("journal write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("journal sync: %w", err)
	}
	s.last = &rep
	return nil
}

// Load reads every record. A missing file is an empty journal.
func (s *Store) Load() ([]swap.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []swap.Report
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rep swap.Report
		if err := json.Unmarshal(sc.Bytes(), &rep); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		out = append(out, rep)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) > 0 {
		s.last = &out[len(out)-1]
	}
	return out, nil
}

// Unconfirmed returns results that ended in a confirmation timeout. Their
// transactions may still be mined.
func (s *Store) Unconfirmed() ([]swap.Report, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	var out []swap.Report
	for _, rep := range all {
		if rep.ErrorKind == string(txbuilder.KindConfirmationTimeout) {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (s *Store) Last() (swap.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return swap.Report{}, false
	}
	return *s.last, true
}
