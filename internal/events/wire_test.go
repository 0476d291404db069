package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	frame := EncodeFrame(42, []byte(`{"user_id":"u-1"}`))
	require.Equal(t, byte(0), frame[0])

	id, payload, err := DecodeFrame(frame)
	require.NoError(t, err)
	require.Equal(t, 42, id)
	require.JSONEq(t, `{"user_id":"u-1"}`, string(payload))

	frame[5] = 'X'
	require.NotEqual(t, frame[5], payload[0], "decoded payload must not alias the frame")
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	_, _, err := DecodeFrame([]byte{0, 0, 1})
	require.Error(t, err)

	_, _, err = DecodeFrame([]byte{1, 0, 0, 0, 7, '{', '}'})
	require.Error(t, err)
}

func TestSchemaFor(t *testing.T) {
	for _, eventType := range []string{TypeWorkoutCompleted, TypeMealLogged, TypeCheckInRecorded} {
		schema, ok := SchemaFor(eventType)
		require.True(t, ok)
		require.Equal(t, ActivityRecordedSchema, schema)
	}
	schema, ok := SchemaFor(TypeProfileRefreshed)
	require.True(t, ok)
	require.Equal(t, ProfileRefreshedSchema, schema)

	_, ok = SchemaFor("activity.unknown")
	require.False(t, ok)
}
