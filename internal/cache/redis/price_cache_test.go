package redis

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSampleRoundTrip(t *testing.T) {
	ts := time.Now().UTC().Truncate(time.Millisecond)
	fields := map[string]string{
		"price":         "0.000125",
		"reserve_base":  "48.5",
		"reserve_token": "388000",
		"token_is_t0":   "1",
		"ts":            strconv.FormatInt(ts.UnixNano(), 10),
	}

	s, ok := parseSample(fields)
	require.True(t, ok)
	assert.InDelta(t, 0.000125, s.Price, 1e-12)
	assert.InDelta(t, 48.5, s.ReserveBase, 1e-9)
	assert.InDelta(t, 388000.0, s.ReserveToken, 1e-6)
	assert.True(t, s.TokenIsToken0)
	assert.True(t, s.Timestamp.Equal(ts))
}

func TestParseSampleEmptyHash(t *testing.T) {
	_, ok := parseSample(map[string]string{})
	assert.False(t, ok)
}

func TestParseSampleBadPrice(t *testing.T) {
	_, ok := parseSample(map[string]string{"price": "not-a-number"})
	assert.False(t, ok)
}

func TestBoolField(t *testing.T) {
	assert.Equal(t, "1", boolField(true))
	assert.Equal(t, "0", boolField(false))
}
