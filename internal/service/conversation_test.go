package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
)

func TestConversationAppendAndHistory(t *testing.T) {
	env := newTestEnv(t, 2)
	tpl, _, _ := env.seedTree(t, "营收")

	msg, err := env.conversations.Append(tpl.ID, AppendMessageInput{Role: "user", Content: "把营收写得更具体"})
	require.NoError(t, err)
	assert.Equal(t, 1, msg.SequenceNumber)
	assert.Equal(t, "main", msg.Surface)

	_, err = env.conversations.Append(tpl.ID, AppendMessageInput{Role: "assistant", Content: "好的", Surface: "sidebar"})
	require.NoError(t, err)

	history, err := env.conversations.History(tpl.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "sidebar", history[1].Surface)
}

func TestConversationRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t, 2)
	tpl, _, _ := env.seedTree(t, "营收")

	_, err := env.conversations.Append(tpl.ID, AppendMessageInput{Role: "moderator", Content: "x"})
	assert.True(t, apperrors.IsValidation(err), "expected ValidationError, got %v", err)
}

func TestConversationConcurrentAppendsKeepSequence(t *testing.T) {
	env := newTestEnv(t, 2)
	tpl, _, _ := env.seedTree(t, "营收")

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.conversations.Append(tpl.ID, AppendMessageInput{
				Role:    "user",
				Content: fmt.Sprintf("message %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := env.conversations.History(tpl.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, n)
	for i, msg := range history {
		assert.Equal(t, i+1, msg.SequenceNumber)
	}
}

func TestConversationHistoryMissingTemplate(t *testing.T) {
	env := newTestEnv(t, 2)
	_, err := env.conversations.History(999, 0)
	assert.True(t, apperrors.IsNotFound(err), "expected NotFoundError, got %v", err)
}
