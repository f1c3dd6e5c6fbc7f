package whisper_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulox/pulox/pkg/provider/asr"
	"github.com/pulox/pulox/pkg/provider/asr/whisper"
)

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := whisper.New(""); err == nil {
		t.Error("New with empty URL did not error")
	}
}

func TestClient_Transcribe(t *testing.T) {
	t.Parallel()

	var (
		gotPath     string
		gotLanguage string
		gotModel    string
		gotAudio    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")

		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotAudio, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" magandang umaga po sa inyong lahat \n"}`)
	}))
	defer srv.Close()

	c, err := whisper.New(srv.URL, whisper.WithModel("small"))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	audio := []byte("RIFF fake wav payload")
	tr, err := c.Transcribe(t.Context(), asr.Request{Audio: audio, Language: "tl"})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}

	if gotPath != "/inference" {
		t.Errorf("request path = %q, want /inference", gotPath)
	}
	if gotLanguage != "tl" {
		t.Errorf("language field = %q, want tl", gotLanguage)
	}
	if gotModel != "small" {
		t.Errorf("model field = %q, want small", gotModel)
	}
	if string(gotAudio) != string(audio) {
		t.Error("uploaded audio does not match request audio")
	}
	if tr.Text != "magandang umaga po sa inyong lahat" {
		t.Errorf("text = %q", tr.Text)
	}
	if tr.Language != "tl" {
		t.Errorf("language = %q, want tl", tr.Language)
	}
}

func TestClient_Transcribe_SegmentsAndDuration(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"text": " magandang umaga class ",
			"language": "tl",
			"segments": [
				{"start": 0, "end": 1.4, "text": " magandang umaga "},
				{"start": 1.4, "end": 2.2, "text": " class "}
			]
		}`)
	}))
	defer srv.Close()

	c, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	tr, err := c.Transcribe(t.Context(), asr.Request{Audio: []byte("x"), Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}

	if tr.Language != "tl" {
		t.Errorf("language = %q, want detected tl over the hint", tr.Language)
	}
	want := []asr.Segment{
		{Start: 0, End: 1.4, Text: "magandang umaga"},
		{Start: 1.4, End: 2.2, Text: "class"},
	}
	if len(tr.Segments) != len(want) {
		t.Fatalf("got %d segments, want %d", len(tr.Segments), len(want))
	}
	for i, seg := range tr.Segments {
		if seg != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, seg, want[i])
		}
	}
	if tr.Duration != 2.2 {
		t.Errorf("duration = %v, want 2.2 (end of last segment)", tr.Duration)
	}
}

func TestClient_Transcribe_DefaultLanguage(t *testing.T) {
	t.Parallel()

	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotLanguage = r.FormValue("language")
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	c, err := whisper.New(srv.URL, whisper.WithLanguage("en"))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := c.Transcribe(t.Context(), asr.Request{Audio: []byte("x")}); err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if gotLanguage != "en" {
		t.Errorf("language field = %q, want en", gotLanguage)
	}
}

func TestClient_Transcribe_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := c.Transcribe(t.Context(), asr.Request{Audio: []byte("x")}); err == nil {
		t.Error("Transcribe did not propagate server error")
	}
}

func TestClient_Transcribe_EmptyAudio(t *testing.T) {
	t.Parallel()

	c, err := whisper.New("http://localhost:1")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := c.Transcribe(t.Context(), asr.Request{}); err == nil {
		t.Error("Transcribe with empty audio did not error")
	}
}
