package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
)

func TestLedgerConcurrentSavesAreGapFree(t *testing.T) {
	env := newTestEnv(t, 2)
	_, _, subs := env.seedTree(t, "营收")

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := fmt.Sprintf("draft %d", i)
			_, err := env.ledger.Save(subs[0].ID, SaveVersionInput{
				Content:     &content,
				GeneratedBy: "user_edit",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := env.ledger.History(subs[0].ID)
	require.NoError(t, err)
	require.Len(t, history, n)
	// 按版本号降序，1..n 不重号不跳号
	for i, v := range history {
		assert.Equal(t, n-i, v.VersionNumber)
	}

	sub, err := env.ledger.Latest(subs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, n, sub.VersionNumber)
}

func TestLedgerRejectsUnknownGeneratedBy(t *testing.T) {
	env := newTestEnv(t, 2)
	_, _, subs := env.seedTree(t, "营收")

	content := "x"
	_, err := env.ledger.Save(subs[0].ID, SaveVersionInput{Content: &content, GeneratedBy: "robot"})
	assert.True(t, apperrors.IsValidation(err), "expected ValidationError, got %v", err)
}

func TestLedgerRejectsUnknownContentType(t *testing.T) {
	env := newTestEnv(t, 2)
	_, _, subs := env.seedTree(t, "营收")

	content, contentType := "x", "xml"
	_, err := env.ledger.Save(subs[0].ID, SaveVersionInput{Content: &content, ContentType: &contentType})
	assert.True(t, apperrors.IsValidation(err), "expected ValidationError, got %v", err)
}

func TestLedgerMarkFinal(t *testing.T) {
	env := newTestEnv(t, 2)
	_, _, subs := env.seedTree(t, "营收")

	a, b := "草稿一", "草稿二"
	v1, err := env.ledger.Save(subs[0].ID, SaveVersionInput{Content: &a, GeneratedBy: "user_edit"})
	require.NoError(t, err)
	_, err = env.ledger.Save(subs[0].ID, SaveVersionInput{Content: &b, GeneratedBy: "user_edit"})
	require.NoError(t, err)

	marked, err := env.ledger.MarkFinal(v1.VersionID)
	require.NoError(t, err)
	assert.True(t, marked.IsFinal)

	history, err := env.ledger.History(subs[0].ID)
	require.NoError(t, err)
	for _, v := range history {
		assert.Equal(t, v.ID == v1.VersionID, v.IsFinal, "version %d", v.VersionNumber)
	}
}

func TestLedgerSaveMissingSubsection(t *testing.T) {
	env := newTestEnv(t, 2)
	content := "x"
	_, err := env.ledger.Save(12345, SaveVersionInput{Content: &content})
	assert.True(t, apperrors.IsNotFound(err), "expected NotFoundError, got %v", err)
}
