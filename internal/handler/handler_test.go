package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhelpdesk/deskd/internal/types"
)

type fakeRetriever struct {
	context string
	err     error
}

func (f *fakeRetriever) GetContext(string) (string, error) { return f.context, f.err }

type fakeComposer struct {
	reply    string
	err      error
	question string
	context  string
}

func (f *fakeComposer) Compose(_ context.Context, question, kbContext string, _ []*types.ConversationEntry) (string, error) {
	f.question = question
	f.context = kbContext
	return f.reply, f.err
}

type fakeHistory struct{}

func (fakeHistory) RecentEntries(string, int) ([]*types.ConversationEntry, error) {
	return nil, nil
}

func msg(body string) *types.Message {
	return &types.Message{ID: "m1", Sender: "a@example.com", Subject: "hello", Body: body}
}

func TestBankStatement(t *testing.T) {
	h := &BankStatement{}

	t.Run("default three months", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), msg("statements please"), &types.IntentResult{Intent: types.IntentBankStatement}, "t1")
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Len(t, resp.Attachments, 3)
		assert.Contains(t, resp.Body, "3 month(s)")
	})

	t.Run("months entity respected", func(t *testing.T) {
		result := &types.IntentResult{
			Intent:   types.IntentBankStatement,
			Entities: map[string]string{"months": "6"},
		}
		resp, err := h.Handle(context.Background(), msg("six months"), result, "t1")
		require.NoError(t, err)
		assert.Len(t, resp.Attachments, 6)
		assert.Equal(t, "bank_statement_month_6.pdf", resp.Attachments[5])
	})

	t.Run("absurd months falls back to default", func(t *testing.T) {
		for _, m := range []string{"0", "-2", "500", "soon"} {
			result := &types.IntentResult{
				Intent:   types.IntentBankStatement,
				Entities: map[string]string{"months": m},
			}
			resp, err := h.Handle(context.Background(), msg("statements"), result, "t1")
			require.NoError(t, err)
			assert.Len(t, resp.Attachments, 3, "months=%q", m)
		}
	})
}

func TestPasswordUpdateNeverEchoesCredentials(t *testing.T) {
	h := &PasswordUpdate{}
	result := &types.IntentResult{
		Intent:   types.IntentPasswordUpdate,
		Entities: map[string]string{"current_pw": "hunter2", "new_pw": "hunter3"},
	}

	resp, err := h.Handle(context.Background(), msg("change my password to hunter3"), result, "t1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotContains(t, resp.Body, "hunter2")
	assert.NotContains(t, resp.Body, "hunter3")
	assert.Contains(t, resp.Body, "secure link")
}

func TestGeneralQuery(t *testing.T) {
	t.Run("composer path uses specific question and context", func(t *testing.T) {
		composer := &fakeComposer{reply: "Here is how exports work."}
		h := &GeneralQuery{
			Retriever: &fakeRetriever{context: "[faq.md] exports live under Documents"},
			Composer:  composer,
			History:   fakeHistory{},
		}
		result := &types.IntentResult{
			Intent:   types.IntentGeneralQuery,
			Entities: map[string]string{"specific_question": "how do I export?"},
		}

		resp, err := h.Handle(context.Background(), msg("long rambling email"), result, "t1")
		require.NoError(t, err)
		assert.Equal(t, "Here is how exports work.", resp.Body)
		assert.Equal(t, "how do I export?", composer.question)
		assert.Contains(t, composer.context, "faq.md")
	})

	t.Run("no composer answers from excerpts", func(t *testing.T) {
		h := &GeneralQuery{Retriever: &fakeRetriever{context: "[faq.md] useful excerpt"}}
		resp, err := h.Handle(context.Background(), msg("question"), &types.IntentResult{Intent: types.IntentGeneralQuery}, "t1")
		require.NoError(t, err)
		assert.Contains(t, resp.Body, "useful excerpt")
	})

	t.Run("empty knowledge base gets the follow-up template", func(t *testing.T) {
		h := &GeneralQuery{Retriever: &fakeRetriever{}}
		resp, err := h.Handle(context.Background(), msg("question"), &types.IntentResult{Intent: types.IntentGeneralQuery}, "t1")
		require.NoError(t, err)
		assert.Contains(t, resp.Body, "follow up")
	})

	t.Run("retriever failure propagates", func(t *testing.T) {
		h := &GeneralQuery{Retriever: &fakeRetriever{err: errors.New("fts offline")}}
		_, err := h.Handle(context.Background(), msg("question"), &types.IntentResult{Intent: types.IntentGeneralQuery}, "t1")
		assert.Error(t, err)
	})
}
