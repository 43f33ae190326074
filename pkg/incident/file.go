package incident

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ledgerFile is the subset of *os.File the store writes through.
type ledgerFile interface {
	io.Writer
	Sync() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Close() error
}

// FileStore appends records to a JSON Lines file and serves reads from an
// in-memory copy loaded at open.
type FileStore struct {
	path string

	mu      sync.RWMutex
	file    ledgerFile
	records []Record
}

// OpenFileStore opens or creates the ledger at path.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	records, err := readLedger(path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	return &FileStore{path: path, file: f, records: records}, nil
}

func readLedger(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, r)
	}
	return records, sc.Err()
}

func (s *FileStore) Insert(_ context.Context, r Record) (string, error) {
	if err := checkRecord(r); err != nil {
		return "", err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", &StoreError{Op: "insert", Err: err}
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return "", &StoreError{Op: "insert", Err: os.ErrClosed}
	}
	info, err := s.file.Stat()
	if err != nil {
		return "", &StoreError{Op: "insert", Err: err}
	}
	offset := info.Size()
	if _, err := s.file.Write(data); err != nil {
		return "", &StoreError{Op: "insert", Err: s.rollback(offset, err)}
	}
	if err := s.file.Sync(); err != nil {
		return "", &StoreError{Op: "insert", Err: s.rollback(offset, err)}
	}
	s.records = append(s.records, r)
	return r.ID, nil
}

// rollback cuts the ledger back to offset so that a partial line never
// reaches the next open.
func (s *FileStore) rollback(offset int64, cause error) error {
	if err := s.file.Truncate(offset); err != nil {
		return errors.Join(cause, fmt.Errorf("truncate ledger: %w", err))
	}
	return cause
}

func (s *FileStore) List(_ context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	snapshot := make([]Record, len(s.records))
	copy(snapshot, s.records)
	s.mu.RUnlock()
	return q.apply(snapshot), nil
}

func (s *FileStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
