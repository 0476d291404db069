package persistence

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/gymcore/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	token := EncodeCursor(&domain.Cursor{TotalPoints: 1250, UserID: "user|with|pipes"})
	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	require.Equal(t, 1250, cursor.TotalPoints)
	require.Equal(t, "user|with|pipes", cursor.UserID)
}

func TestDecodeCursorEmptyAndInvalid(t *testing.T) {
	cursor, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, cursor)
	require.Empty(t, EncodeCursor(nil))

	_, err = DecodeCursor("%%%")
	require.Error(t, err)

	_, err = DecodeCursor(base64.URLEncoding.EncodeToString([]byte("abc|user")))
	require.Error(t, err)

	_, err = DecodeCursor(base64.URLEncoding.EncodeToString([]byte("10|")))
	require.Error(t, err)
}
