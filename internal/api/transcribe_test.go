package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dhrumilbhut/codevoice/internal/speech"
)

type fakeTranscriber struct {
	text string
	err  error
	got  []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	f.got = audio
	return f.text, f.err
}

func (f *fakeTranscriber) Close() {}

func postTranscribe(t *testing.T, h *Handler, body TranscribeRequest) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h.HandleTranscribe(rec, req)
	return rec
}

func TestHandleTranscribe(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscriber{text: "create a todo app"}
	h := NewHandler(&fakeRunner{}, nil, tr)

	audio := []byte{0x01, 0x02, 0x03}
	rec := postTranscribe(t, h, TranscribeRequest{
		Audio:  base64.StdEncoding.EncodeToString(audio),
		Format: "wav",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp TranscribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Text != "create a todo app" {
		t.Fatalf("text = %q", resp.Text)
	}
	if !bytes.Equal(tr.got, audio) {
		t.Fatalf("transcriber got %v", tr.got)
	}
}

func TestHandleTranscribeNoSpeech(t *testing.T) {
	t.Parallel()

	h := NewHandler(&fakeRunner{}, nil, &fakeTranscriber{err: speech.ErrNoInput})
	rec := postTranscribe(t, h, TranscribeRequest{
		Audio: base64.StdEncoding.EncodeToString([]byte("silence")),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandleTranscribeRejectsBadBase64(t *testing.T) {
	t.Parallel()

	h := NewHandler(&fakeRunner{}, nil, &fakeTranscriber{})
	rec := postTranscribe(t, h, TranscribeRequest{Audio: "not base64!!!"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleTranscribeDisabled(t *testing.T) {
	t.Parallel()

	h := NewHandler(&fakeRunner{}, nil, nil)
	rec := postTranscribe(t, h, TranscribeRequest{Audio: base64.StdEncoding.EncodeToString([]byte("x"))})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
