package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTable_Transitions(t *testing.T) {
	table := NewSessionTable(10, 0)
	start := time.Unix(100, 0)

	table.Start(UploadSession{Key: "k", UploadID: "u", PartSize: 5, State: StateAborted, CreatedAt: start})

	s, ok := table.Get("u")
	require.True(t, ok)
	assert.Equal(t, StateInitiated, s.State, "start always records initiated")
	assert.Equal(t, start, s.UpdatedAt)

	table.PartIssued("u", start.Add(time.Second))
	table.PartIssued("u", start.Add(2*time.Second))
	s, _ = table.Get("u")
	assert.Equal(t, StatePartsInFlight, s.State)
	assert.Equal(t, 2, s.PartsIssued)
	assert.Equal(t, start.Add(2*time.Second), s.UpdatedAt)

	table.Finish("u", StateCompleted, start.Add(3*time.Second))
	s, _ = table.Get("u")
	assert.Equal(t, StateCompleted, s.State)

	// later part requests do not reopen a finished session
	table.PartIssued("u", start.Add(4*time.Second))
	s, _ = table.Get("u")
	assert.Equal(t, StateCompleted, s.State)
	assert.Equal(t, 3, s.PartsIssued)
}

func TestSessionTable_UnknownIgnored(t *testing.T) {
	table := NewSessionTable(10, 0)

	table.PartIssued("missing", time.Now())
	table.Finish("missing", StateAborted, time.Now())

	_, ok := table.Get("missing")
	assert.False(t, ok)
}

func TestSessionTable_Expiry(t *testing.T) {
	table := NewSessionTable(10, 20*time.Millisecond)
	table.Start(UploadSession{UploadID: "u", CreatedAt: time.Now()})

	assert.Eventually(t, func() bool {
		_, ok := table.Get("u")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
