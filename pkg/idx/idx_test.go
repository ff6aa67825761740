package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := New()
	require.NotEqual(t, Zero, id)

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "not-a-ulid", "user-1", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := Parse(in)
		require.ErrorIs(t, err, ErrInvalid, "input %q", in)
	}
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	prev := newAt(at)
	for range 50 {
		next := newAt(at)
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}
