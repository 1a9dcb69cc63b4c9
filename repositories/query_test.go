package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The select statements are assembled from a shared column-list constant;
// the column list and the FROM clause must stay whitespace-separated.
func TestSelectStatementsSeparateColumnsFromTable(t *testing.T) {
	tests := []struct {
		name  string
		query string
		table string
	}{
		{"matches", selectMatch, "matches"},
		{"tournaments", selectTournament, "tournaments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, `^SELECT\s`, tt.query)
			assert.Regexp(t, `created_at\s+FROM\s+`+tt.table, tt.query)
			assert.NotContains(t, tt.query, "created_atFROM")
		})
	}
}
