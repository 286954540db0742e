package db

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoungePostAndGetChronological(t *testing.T) {
	openTestDB(t)

	for i := 1; i <= 3; i++ {
		_, err := PostLoungeMessage(fmt.Sprintf("note %d", i), "sess", 0)
		require.NoError(t, err)
	}

	msgs, err := GetRecentLoungeMessages(10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "note 1", msgs[0].Message)
	assert.Equal(t, "note 3", msgs[2].Message)
}

func TestLoungeRetentionHolds(t *testing.T) {
	openTestDB(t)

	for i := 0; i < 12; i++ {
		_, err := PostLoungeMessage(fmt.Sprintf("m%d", i), "s", 5)
		require.NoError(t, err)

		count, err := CountLoungeMessages()
		require.NoError(t, err)
		assert.LessOrEqual(t, count, int64(5))
	}

	msgs, err := GetRecentLoungeMessages(10)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "m11", msgs[4].Message)
}

func TestLoungeTruncatesOverlongInput(t *testing.T) {
	openTestDB(t)

	_, err := PostLoungeMessage(strings.Repeat("x", 2000), strings.Repeat("l", 100), 0)
	require.NoError(t, err)

	msgs, err := GetRecentLoungeMessages(1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Message, 1000)
	assert.Len(t, msgs[0].Label, 50)
}

func TestLoungeEmptyLabelDefaults(t *testing.T) {
	openTestDB(t)

	_, err := PostLoungeMessage("hello", "", 0)
	require.NoError(t, err)

	msgs, err := GetRecentLoungeMessages(1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "anonymous", msgs[0].Label)
}

func TestLoungeNewestNWhenOverLimit(t *testing.T) {
	openTestDB(t)

	for i := 0; i < 8; i++ {
		_, err := PostLoungeMessage(fmt.Sprintf("m%d", i), "s", 0)
		require.NoError(t, err)
	}

	msgs, err := GetRecentLoungeMessages(3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// Newest three, oldest first
	assert.Equal(t, "m5", msgs[0].Message)
	assert.Equal(t, "m7", msgs[2].Message)
}
