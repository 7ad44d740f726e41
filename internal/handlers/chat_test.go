package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"notably-ai/internal/chat"
	chatmocks "notably-ai/internal/chat/mocks"
	"notably-ai/internal/handlers"
	"notably-ai/internal/llm"
	"notably-ai/internal/noteindex"
	indexmocks "notably-ai/internal/noteindex/mocks"
	storagemocks "notably-ai/internal/storage/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newChatHandler(t *testing.T) (*handlers.ChatHandler, *chatmocks.MockEmbedder, *indexmocks.MockIndex, *chatmocks.MockChatModel) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	embedder := chatmocks.NewMockEmbedder(ctrl)
	model := chatmocks.NewMockChatModel(ctrl)
	store := storagemocks.NewMockNoteStore(ctrl)
	index := indexmocks.NewMockIndex(ctrl)

	engine := chat.NewEngine(embedder, chat.NewAssembler(store, index), model, chat.PersonaNeutral)
	return handlers.NewChatHandler(engine), embedder, index, model
}

func TestChatHandler_InvalidBody(t *testing.T) {
	handler, _, _, _ := newChatHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatHandler_MidStreamErrorFrame(t *testing.T) {
	// Once chunks have been written the status line is gone; a failure must
	// surface as an in-band error frame instead of a late status rewrite.
	handler, embedder, index, model := newChatHandler(t)

	embedder.EXPECT().EmbedText(gomock.Any(), gomock.Any()).Return([]float32{0.1}, nil)
	index.EXPECT().Query(gomock.Any(), noteindex.Trial(), gomock.Any(), 3).Return(nil, nil)
	model.EXPECT().
		StreamChatWithHistory(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, history []llm.Message, message string, callback func(string) error) error {
			if err := callback("partial"); err != nil {
				return err
			}
			return errors.New("model connection lost")
		})

	body := `{"messages":[{"role":"user","content":"hi"}],"trialNotes":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (headers already sent)", rec.Code)
	}

	out := rec.Body.String()
	if !strings.Contains(out, "data: partial\n\n") {
		t.Errorf("stream missing partial chunk:\n%s", out)
	}
	if !strings.Contains(out, `"error"`) {
		t.Errorf("stream missing error frame:\n%s", out)
	}
	if strings.Contains(out, "data: [DONE]") {
		t.Errorf("failed stream must not emit the done frame:\n%s", out)
	}
}
