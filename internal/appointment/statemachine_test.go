package appointment

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-engine/internal/apperr"
)

var allStatuses = []AppointmentStatus{
	StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow,
}

func TestTransitionTable(t *testing.T) {
	allowed := map[AppointmentStatus]map[AppointmentStatus]bool{
		StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed:  {StatusInProgress: true, StatusCancelled: true, StatusNoShow: true},
		StatusInProgress: {StatusCompleted: true, StatusCancelled: true},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[from][to]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)

			err := ValidateTransition(from, to)
			if want {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "%s -> %s: %v", from, to, err)
			}
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, st := range allStatuses {
		want := st == StatusCompleted || st == StatusCancelled || st == StatusNoShow
		assert.Equal(t, want, IsTerminal(st), st)
	}
	assert.False(t, IsTerminal("archived"))
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("in_progress")
	require.True(t, ok)
	assert.Equal(t, StatusInProgress, st)

	_, ok = ParseStatus("expired")
	assert.False(t, ok)
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 100)

	assert.True(t, codesMatch("0420", "0420"))
	assert.False(t, codesMatch("0420", "420"))
	assert.False(t, codesMatch("0420", "04200"))
	assert.False(t, codesMatch("0420", "0421"))
}
