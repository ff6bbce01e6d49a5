package sqlbase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "dollar placeholders",
			dialect:  Dialect{Placeholder: DollarPlaceholder},
			query:    "SELECT 1 FROM t WHERE a = ? AND b = ? LIMIT ?",
			expected: "SELECT 1 FROM t WHERE a = $1 AND b = $2 LIMIT $3",
		},
		{
			name:     "question placeholders",
			dialect:  Dialect{Placeholder: QuestionPlaceholder},
			query:    "INSERT INTO t VALUES (?, ?)",
			expected: "INSERT INTO t VALUES (?, ?)",
		},
		{
			name:     "no placeholder func",
			dialect:  Dialect{},
			query:    "SELECT ?",
			expected: "SELECT ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.Rebind(tt.query))
		})
	}
}

func TestMigrationManager_LatestVersion(t *testing.T) {
	m := NewMigrationManager(nil, nil, Dialect{}, map[int]string{3: "c", 1: "a", 2: "b"})
	assert.Equal(t, 3, m.LatestVersion())

	empty := NewMigrationManager(nil, nil, Dialect{}, nil)
	assert.Equal(t, 0, empty.LatestVersion())
}

func TestDialect_Time(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 500, time.FixedZone("BRT", -3*3600))

	assert.Equal(t, at.UTC(), Dialect{}.Time(at))
	assert.Equal(t, at.UnixNano(), Dialect{TimeValue: UnixNanoTime}.Time(at))
}
