package whisper

import (
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotLanguage, gotModel string
	var gotWAV []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotWAV, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"  yes this is Bob speaking  "}`)
	}))
	defer srv.Close()

	tr, err := New(srv.URL, WithLanguage("en"), WithModel("base.en"))
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]byte, 640)
	text, err := tr.Transcribe(context.Background(), pcm)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "yes this is Bob speaking" {
		t.Errorf("text = %q", text)
	}
	if gotLanguage != "en" || gotModel != "base.en" {
		t.Errorf("form fields = (%q, %q)", gotLanguage, gotModel)
	}

	// WAV header sanity: RIFF magic, 16 kHz mono, matching data size.
	if len(gotWAV) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(gotWAV), 44+len(pcm))
	}
	if string(gotWAV[0:4]) != "RIFF" || string(gotWAV[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(gotWAV[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}
	if ch := binary.LittleEndian.Uint16(gotWAV[22:24]); ch != 1 {
		t.Errorf("channels = %d", ch)
	}
	if size := binary.LittleEndian.Uint32(gotWAV[40:44]); int(size) != len(pcm) {
		t.Errorf("data size = %d", size)
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Transcribe(context.Background(), make([]byte, 320)); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestTranscribeEmptyInput(t *testing.T) {
	t.Parallel()

	tr, err := New("http://localhost:1")
	if err != nil {
		t.Fatal(err)
	}
	text, err := tr.Transcribe(context.Background(), nil)
	if err != nil || text != "" {
		t.Fatalf("empty input: got (%q, %v), want no request at all", text, err)
	}
}

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("empty server URL accepted")
	}
}
