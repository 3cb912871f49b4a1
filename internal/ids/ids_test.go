package ids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistinctKindsDoNotCollide(t *testing.T) {
	sid := NewSessionID()
	oid := NewOperationID()
	assert.NotEqual(t, sid.String(), oid.String())
	assert.Contains(t, sid.String(), "sess_")
	assert.Contains(t, oid.String(), "op_")
}

func TestToolCallIDPreservesModelValue(t *testing.T) {
	tc := ToolCallIDFromModel("toolu_01AbCdEf")
	assert.Equal(t, "toolu_01AbCdEf", tc.String())
	assert.False(t, tc.IsZero())
}

func TestRoundTripJSON(t *testing.T) {
	sid := NewSessionID()
	b, err := json.Marshal(sid)
	require.NoError(t, err)

	var got SessionID
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, sid, got)
}

func TestZeroValues(t *testing.T) {
	var sid SessionID
	var tc ToolCallID
	assert.True(t, sid.IsZero())
	assert.True(t, tc.IsZero())
}

func TestParseSessionIDRejectsGarbage(t *testing.T) {
	_, err := ParseSessionID("not-a-uuid")
	assert.Error(t, err)
}
