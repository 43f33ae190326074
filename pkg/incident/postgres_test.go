package incident

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSQL(t *testing.T) {
	query, args := listSQL(Query{
		Sort:   SeverityDesc,
		Filter: Filter{Severity: SeverityHigh, Text: "50%_off"},
		Limit:  10,
	})
	assert.Contains(t, query, "WHERE severity = $1 AND (subject ILIKE $2")
	assert.Contains(t, query, "description ILIKE $2")
	assert.Contains(t, query, "WHEN 'Critical' THEN 4")
	assert.Contains(t, query, "DESC, created_at ASC, id ASC")
	assert.Contains(t, query, "LIMIT $3")
	assert.Equal(t, []any{"High", `%50\%\_off%`, 10}, args)

	query, args = listSQL(Query{})
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "ORDER BY created_at DESC")
	assert.Empty(t, args)
}

// TestPostgresStore needs a scratch database, e.g.
// GOSEC_POSTURE_TEST_DSN=postgres://localhost/gosec_test?sslmode=disable
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("GOSEC_POSTURE_TEST_DSN")
	if dsn == "" {
		t.Skip("GOSEC_POSTURE_TEST_DSN not set")
	}
	storeSuite(t, func(t *testing.T) Store {
		s, err := OpenPostgresStore(context.Background(), dsn, nil)
		require.NoError(t, err)
		_, err = s.db.Exec("TRUNCATE incident_records")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
