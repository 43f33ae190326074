package incident

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(id, subject string, sev Severity, desc string, minute int) Record {
	return Record{
		ID: id, Subject: subject, Severity: sev, Description: desc,
		CreatedAt: t0.Add(time.Duration(minute) * time.Minute), Status: StatusNew,
	}
}

func seed(t *testing.T, s Store) {
	t.Helper()
	for _, r := range []Record{
		rec("a", "Phishing email", SeverityMedium, "User reported a suspicious link", 0),
		rec("b", "Ransomware note", SeverityCritical, "Files renamed on FILESERVER", 1),
		rec("c", "Port scan", SeverityLow, "Inbound scan from unknown host", 2),
		rec("d", "Leaked token", SeverityCritical, "API token found in public repo", 3),
		rec("e", "Failed logins", SeverityHigh, "Burst of phishing-related logins", 4),
	} {
		_, err := s.Insert(context.Background(), r)
		require.NoError(t, err)
	}
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// storeSuite runs the behaviour every backend must share.
func storeSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("sort orders", func(t *testing.T) {
		s := open(t)
		seed(t, s)
		cases := map[SortOrder][]string{
			TimeAsc:      {"a", "b", "c", "d", "e"},
			TimeDesc:     {"e", "d", "c", "b", "a"},
			SeverityDesc: {"b", "d", "e", "a", "c"},
			SeverityAsc:  {"c", "a", "e", "b", "d"},
		}
		for order, want := range cases {
			got, err := s.List(ctx, Query{Sort: order})
			require.NoError(t, err)
			assert.Equal(t, want, ids(got), "order %s", order)
		}
	})

	t.Run("filters", func(t *testing.T) {
		s := open(t)
		seed(t, s)

		got, err := s.List(ctx, Query{Sort: TimeAsc, Filter: Filter{Severity: SeverityCritical}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "d"}, ids(got))

		// Matches the subject of one record and the description of another.
		got, err = s.List(ctx, Query{Sort: TimeAsc, Filter: Filter{Text: "PHISHING"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "e"}, ids(got))

		got, err = s.List(ctx, Query{Sort: TimeAsc, Filter: Filter{Severity: SeverityHigh, Text: "phishing"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"e"}, ids(got))

		got, err = s.List(ctx, Query{Filter: Filter{Text: "nothing like this"}})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.List(ctx, Query{Sort: TimeDesc, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"e", "d"}, ids(got))
	})

	t.Run("rejects empty subject", func(t *testing.T) {
		s := open(t)
		_, err := s.Insert(ctx, rec("x", "", SeverityLow, "no subject", 0))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "subject", verr.Field)
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("concurrent inserts and lists", func(t *testing.T) {
		s := open(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_, err := s.Insert(ctx, rec(fmt.Sprintf("r%02d", i), "subject", SeverityLow, "desc", i))
				assert.NoError(t, err)
			}(i)
			go func() {
				defer wg.Done()
				records, err := s.List(ctx, Query{})
				assert.NoError(t, err)
				for _, r := range records {
					assert.Equal(t, "subject", r.Subject)
				}
			}()
		}
		wg.Wait()
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 20, n)
	})
}

func TestMemoryStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestFileStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store {
		s, err := OpenFileStore(filepath.Join(t.TempDir(), "incidents.jsonl"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "incidents.jsonl")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	s, err = OpenFileStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.List(context.Background(), Query{Sort: TimeAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(got))
	assert.True(t, got[0].CreatedAt.Equal(t0))
}

func TestFileStoreRejectsCorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"a\"}\nnot json\n"), 0600))
	_, err := OpenFileStore(path)
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, err.Error(), ":2:")
}

func TestFileStoreInsertAfterClose(t *testing.T) {
	s, err := OpenFileStore(filepath.Join(t.TempDir(), "incidents.jsonl"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.Insert(context.Background(), rec("a", "s", SeverityLow, "d", 0))
	var serr *StoreError
	assert.ErrorAs(t, err, &serr)
}

// halfWriteFile writes half of each buffer and then fails, like a full disk.
type halfWriteFile struct {
	*os.File
}

func (f halfWriteFile) Write(p []byte) (int, error) {
	n, _ := f.File.Write(p[:len(p)/2])
	return n, errors.New("no space left on device")
}

func TestFileStoreFailedWriteLeavesLedgerReadable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "incidents.jsonl")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	_, err = s.Insert(ctx, rec("a", "Phishing email", SeverityMedium, "Suspicious link", 0))
	require.NoError(t, err)

	orig := s.file.(*os.File)
	s.file = halfWriteFile{File: orig}
	_, err = s.Insert(ctx, rec("b", "Ransomware note", SeverityCritical, "Files renamed", 1))
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s.file = orig
	_, err = s.Insert(ctx, rec("c", "Port scan", SeverityLow, "Inbound scan", 2))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenFileStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.List(ctx, Query{Sort: TimeAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}
