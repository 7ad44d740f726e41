package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"notably-ai/internal/chat"
	chatmocks "notably-ai/internal/chat/mocks"
	"notably-ai/internal/llm"
	"notably-ai/internal/noteindex"
	indexmocks "notably-ai/internal/noteindex/mocks"
	"notably-ai/internal/service"
	"notably-ai/internal/storage"
	storagemocks "notably-ai/internal/storage/mocks"
)

type engineFixture struct {
	embedder *chatmocks.MockEmbedder
	model    *chatmocks.MockChatModel
	store    *storagemocks.MockNoteStore
	index    *indexmocks.MockIndex
	engine   *chat.Engine
}

func newEngineFixture(t *testing.T, persona chat.Persona) *engineFixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &engineFixture{
		embedder: chatmocks.NewMockEmbedder(ctrl),
		model:    chatmocks.NewMockChatModel(ctrl),
		store:    storagemocks.NewMockNoteStore(ctrl),
		index:    indexmocks.NewMockIndex(ctrl),
	}
	assembler := chat.NewAssembler(f.store, f.index)
	f.engine = chat.NewEngine(f.embedder, assembler, f.model, persona)
	return f
}

func TestEngine_StreamAnswer_Validation(t *testing.T) {
	tests := []struct {
		name      string
		req       chat.Request
		wantField string
	}{
		{
			name:      "empty transcript",
			req:       chat.Request{OwnerID: "alice"},
			wantField: "messages",
		},
		{
			name:      "anonymous without trial notes",
			req:       chat.Request{Turns: []chat.Turn{{Role: chat.RoleUser, Content: "hi"}}},
			wantField: "trialNotes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, chat.PersonaNeutral)

			err := f.engine.StreamAnswer(testContext(), tt.req, func(string) error {
				t.Fatal("callback must not fire on validation failure")
				return nil
			})

			var validationErr *service.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("StreamAnswer() error = %v, want ValidationError", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("StreamAnswer() field = %q, want %q", validationErr.Field, tt.wantField)
			}
		})
	}
}

func TestEngine_StreamAnswer_Owner(t *testing.T) {
	f := newEngineFixture(t, chat.PersonaNeutral)

	req := chat.Request{
		OwnerID: "alice",
		Turns: []chat.Turn{
			{Role: chat.RoleUser, Content: "q1"},
			{Role: chat.RoleAssistant, Content: "a1"},
			{Role: chat.RoleUser, Content: "how many notes do I have?"},
		},
	}
	embedding := []float32{0.1, 0.2}

	// The single embedding covers the joined trailing turns.
	f.embedder.EXPECT().
		EmbedText(gomock.Any(), "q1\na1\nhow many notes do I have?").
		Return(embedding, nil)
	f.store.EXPECT().CountByOwner(gomock.Any(), "alice").Return(2, nil)
	f.store.EXPECT().TitlesByOwner(gomock.Any(), "alice").Return([]storage.TitleEntry{
		{Title: "Groceries"}, {Title: "Ideas"},
	}, nil)
	f.index.EXPECT().Query(gomock.Any(), noteindex.OwnerID("alice"), embedding, 20).
		Return([]string{"n1"}, nil)
	f.store.EXPECT().GetByIDs(gomock.Any(), []string{"n1"}).Return([]*storage.NoteRecord{
		{ID: "n1", Title: "Groceries", Content: "milk"},
	}, nil)

	var gotHistory []llm.Message
	var gotMessage string
	f.model.EXPECT().
		StreamChatWithHistory(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, history []llm.Message, message string, callback func(string) error) error {
			gotHistory = history
			gotMessage = message
			for _, chunk := range []string{"You have ", "2 notes."} {
				if err := callback(chunk); err != nil {
					return err
				}
			}
			return nil
		})

	var received []string
	err := f.engine.StreamAnswer(testContext(), req, func(chunk string) error {
		received = append(received, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamAnswer() error = %v", err)
	}

	if len(received) != 2 {
		t.Errorf("StreamAnswer() received %d chunks, want 2", len(received))
	}
	if len(gotHistory) != 2 || gotHistory[0].Role != "user" {
		t.Errorf("StreamAnswer() history = %v, want q1/a1 pair", gotHistory)
	}
	if !strings.Contains(gotMessage, "The user has 2 notes in total.") {
		t.Errorf("final message missing overview:\n%s", gotMessage)
	}
	if !strings.Contains(gotMessage, "Title: Groceries\n\nContent:\nmilk") {
		t.Errorf("final message missing relevant note:\n%s", gotMessage)
	}
	if !strings.HasSuffix(gotMessage, "how many notes do I have?") {
		t.Errorf("final message must end with the user's question:\n%s", gotMessage)
	}
}

func TestEngine_StreamAnswer_Trial(t *testing.T) {
	f := newEngineFixture(t, chat.PersonaFriend)

	req := chat.Request{
		Turns: []chat.Turn{{Role: chat.RoleUser, Content: "summarize my notes"}},
		TrialNotes: []chat.TrialNote{
			{ID: "a", Title: "ta", Content: "ca"},
			{ID: "b", Title: "tb", Content: "cb"},
		},
	}
	embedding := []float32{0.3}

	f.embedder.EXPECT().EmbedText(gomock.Any(), "summarize my notes").Return(embedding, nil)
	f.index.EXPECT().Query(gomock.Any(), noteindex.Trial(), embedding, 3).Return([]string{"b"}, nil)

	var gotMessage string
	f.model.EXPECT().
		StreamChatWithHistory(gomock.Any(), gomock.Len(0), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, history []llm.Message, message string, callback func(string) error) error {
			gotMessage = message
			return callback("done")
		})

	err := f.engine.StreamAnswer(testContext(), req, func(string) error { return nil })
	if err != nil {
		t.Fatalf("StreamAnswer() error = %v", err)
	}

	if !strings.Contains(gotMessage, "The user has 2 notes in total.") {
		t.Errorf("trial message missing overview:\n%s", gotMessage)
	}
	if !strings.Contains(gotMessage, "Title: tb") || strings.Contains(gotMessage, "Title: ta") {
		t.Errorf("trial message must carry only the matched note:\n%s", gotMessage)
	}
	if !strings.Contains(gotMessage, "supportive AI friend") {
		t.Errorf("trial message missing friend persona:\n%s", gotMessage)
	}
}

func TestEngine_StreamAnswer_TrialEmptyNotes(t *testing.T) {
	// An explicit empty trial list is valid; the prompt states zero notes.
	f := newEngineFixture(t, chat.PersonaNeutral)

	req := chat.Request{
		Turns:      []chat.Turn{{Role: chat.RoleUser, Content: "hello"}},
		TrialNotes: []chat.TrialNote{},
	}

	f.embedder.EXPECT().EmbedText(gomock.Any(), "hello").Return([]float32{0.1}, nil)
	f.index.EXPECT().Query(gomock.Any(), noteindex.Trial(), gomock.Any(), 3).Return(nil, nil)

	var gotMessage string
	f.model.EXPECT().
		StreamChatWithHistory(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, history []llm.Message, message string, callback func(string) error) error {
			gotMessage = message
			return nil
		})

	if err := f.engine.StreamAnswer(testContext(), req, func(string) error { return nil }); err != nil {
		t.Fatalf("StreamAnswer() error = %v", err)
	}
	if !strings.Contains(gotMessage, "The user has 0 notes in total.") {
		t.Errorf("empty trial message missing zero count:\n%s", gotMessage)
	}
}

func TestEngine_StreamAnswer_EmbedFailure(t *testing.T) {
	f := newEngineFixture(t, chat.PersonaNeutral)

	req := chat.Request{
		OwnerID: "alice",
		Turns:   []chat.Turn{{Role: chat.RoleUser, Content: "hi"}},
	}

	f.embedder.EXPECT().EmbedText(gomock.Any(), gomock.Any()).Return(nil, errors.New("embeddings down"))

	err := f.engine.StreamAnswer(testContext(), req, func(string) error {
		t.Fatal("callback must not fire when embedding fails")
		return nil
	})
	if err == nil {
		t.Fatal("StreamAnswer() expected error")
	}
}

func TestEngine_StreamAnswer_ModelFailure(t *testing.T) {
	f := newEngineFixture(t, chat.PersonaNeutral)

	req := chat.Request{
		OwnerID: "alice",
		Turns:   []chat.Turn{{Role: chat.RoleUser, Content: "hi"}},
	}

	f.embedder.EXPECT().EmbedText(gomock.Any(), gomock.Any()).Return([]float32{0.1}, nil)
	f.store.EXPECT().CountByOwner(gomock.Any(), "alice").Return(0, nil)
	f.store.EXPECT().TitlesByOwner(gomock.Any(), "alice").Return(nil, nil)
	f.index.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	f.store.EXPECT().GetByIDs(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.model.EXPECT().
		StreamChatWithHistory(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("model down"))

	if err := f.engine.StreamAnswer(testContext(), req, func(string) error { return nil }); err == nil {
		t.Fatal("StreamAnswer() expected error")
	}
}
