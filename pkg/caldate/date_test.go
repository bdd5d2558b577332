package caldate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	d := New(2026, time.March, 9)
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-09"`, string(out))

	var back Date
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, back.Equal(d))

	require.NoError(t, json.Unmarshal([]byte(`"2026-03-09T23:30:00Z"`), &back))
	assert.Equal(t, "2026-03-09", back.String())

	assert.Error(t, json.Unmarshal([]byte(`"09/03/2026"`), &back))
}

func TestOfKeepsLocalDay(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	d := Of(time.Date(2026, 3, 10, 1, 0, 0, 0, loc))
	assert.Equal(t, "2026-03-10", d.String())
	assert.Equal(t, "2026-03-11", d.AddDays(1).String())
	assert.True(t, d.Before(d.AddDays(1)))
}
