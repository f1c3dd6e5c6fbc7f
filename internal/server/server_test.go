package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/internal/correction/spell"
	"github.com/pulox/pulox/internal/observe"
	"github.com/pulox/pulox/internal/server"
	"github.com/pulox/pulox/internal/store"
	"github.com/pulox/pulox/pkg/provider/asr"
	asrmock "github.com/pulox/pulox/pkg/provider/asr/mock"
)

func newTestServer(t *testing.T, opts ...server.Option) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(server.New(opts...).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCorrect_RulesOnly(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	ts := newTestServer(t, server.WithStore(st))

	resp := postJSON(t, ts.URL+"/correct", map[string]any{"text": "dis is gud"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody[struct {
		Result *correction.Result `json:"result"`
		ID     int64              `json:"id"`
	}](t, resp)

	if body.Result.CorrectedText != "This is good" {
		t.Errorf("expected corrected text %q, got %q", "This is good", body.Result.CorrectedText)
	}
	if body.ID == 0 {
		t.Error("expected a persisted record id")
	}

	rec, err := st.GetCorrection(t.Context(), body.ID)
	if err != nil {
		t.Fatalf("GetCorrection returned error: %v", err)
	}
	if rec.OriginalText != "dis is gud" {
		t.Errorf("expected stored original %q, got %q", "dis is gud", rec.OriginalText)
	}
}

func TestCorrect_EmptyText(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/correct", map[string]any{"text": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCorrect_InvalidBody(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/correct", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST returned error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCorrect_RequestOverridesDisableRules(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/correct", map[string]any{
		"text":      "dis is gud",
		"use_rules": false,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody[struct {
		Result *correction.Result `json:"result"`
	}](t, resp)
	if body.Result.CorrectedText != "dis is gud" {
		t.Errorf("expected unchanged text with rules disabled, got %q", body.Result.CorrectedText)
	}
}

func TestCorrectBatch_PreservesOrder(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/correct/batch", map[string]any{
		"texts": []string{"dis is gud", "Ano ba yung sagot"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody[struct {
		Results []*correction.Result `json:"results"`
	}](t, resp)
	if len(body.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(body.Results))
	}
	if body.Results[0].OriginalText != "dis is gud" {
		t.Errorf("expected input order preserved, got %q first", body.Results[0].OriginalText)
	}
}

func TestCorrectBatch_EmptyTexts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/correct/batch", map[string]any{"texts": []string{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	transcriber := &asrmock.Transcriber{
		TranscribeResponse: &asr.Transcript{
			Text:     "Ano ba yung assignment",
			Language: "tl",
			Duration: 2.5,
			Segments: []asr.Segment{
				{Start: 0, End: 1.2, Text: "Ano ba"},
				{Start: 1.2, End: 2.5, Text: "yung assignment"},
			},
		},
	}
	st := store.NewMemStore()
	ts := newTestServer(t, server.WithTranscriber(transcriber), server.WithStore(st))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "lecture.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("RIFF fake audio")); err != nil {
		t.Fatalf("write audio part: %v", err)
	}
	if err := mw.WriteField("language", "tl"); err != nil {
		t.Fatalf("write language field: %v", err)
	}
	mw.Close()

	resp, err := http.Post(ts.URL+"/transcribe", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /transcribe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody[struct {
		ID       int64         `json:"id"`
		Text     string        `json:"text"`
		Language string        `json:"language"`
		Duration float64       `json:"duration"`
		Segments []asr.Segment `json:"segments"`
	}](t, resp)
	if body.Text != "Ano ba yung assignment" {
		t.Errorf("expected transcript text, got %q", body.Text)
	}
	if body.Language != "tl" {
		t.Errorf("expected language tl, got %q", body.Language)
	}
	if body.ID == 0 {
		t.Error("expected a persisted transcript id")
	}
	if body.Duration != 2.5 {
		t.Errorf("expected duration 2.5, got %v", body.Duration)
	}
	if len(body.Segments) != 2 || body.Segments[1].Text != "yung assignment" {
		t.Errorf("expected provider segments passed through, got %+v", body.Segments)
	}

	rec, err := st.GetTranscript(t.Context(), body.ID)
	if err != nil {
		t.Fatalf("GetTranscript returned error: %v", err)
	}
	if rec.Duration != 2.5 || len(rec.Segments) != 2 {
		t.Errorf("expected duration and segments persisted, got %+v", rec)
	}

	calls := transcriber.TranscribeCalls
	if len(calls) != 1 {
		t.Fatalf("expected 1 transcribe call, got %d", len(calls))
	}
	if calls[0].Req.Filename != "lecture.wav" {
		t.Errorf("expected filename forwarded, got %q", calls[0].Req.Filename)
	}
	if calls[0].Req.Language != "tl" {
		t.Errorf("expected language forwarded, got %q", calls[0].Req.Language)
	}
}

func TestTranscribe_NotConfigured(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/transcribe", "multipart/form-data", nil)
	if err != nil {
		t.Fatalf("POST /transcribe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", resp.StatusCode)
	}
}

// audioForm builds a minimal multipart body with an "audio" file part.
func audioForm(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "clip.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("RIFF fake audio")); err != nil {
		t.Fatalf("write audio part: %v", err)
	}
	mw.Close()
	return mw.FormDataContentType(), &buf
}

func TestTranscribe_FailureRecordsProviderError(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	transcriber := &asrmock.Transcriber{TranscribeErr: errors.New("whisper down")}
	ts := newTestServer(t, server.WithTranscriber(transcriber), server.WithMetrics(metrics))

	contentType, body := audioForm(t)
	resp, err := http.Post(ts.URL+"/transcribe", contentType, body)
	if err != nil {
		t.Fatalf("POST /transcribe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var sawError, sawDuration bool
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			switch met.Name {
			case "pulox.provider.errors":
				sum, ok := met.Data.(metricdata.Sum[int64])
				if !ok || len(sum.DataPoints) == 0 {
					t.Fatal("pulox.provider.errors has no data points")
				}
				dp := sum.DataPoints[0]
				if v, _ := dp.Attributes.Value(attribute.Key("provider")); v.AsString() != "asr" {
					t.Errorf("provider attribute = %q, want asr", v.AsString())
				}
				if v, _ := dp.Attributes.Value(attribute.Key("kind")); v.AsString() != "transcribe" {
					t.Errorf("kind attribute = %q, want transcribe", v.AsString())
				}
				sawError = true
			case "pulox.transcription.duration":
				hist, ok := met.Data.(metricdata.Histogram[float64])
				if ok && len(hist.DataPoints) > 0 && hist.DataPoints[0].Count > 0 {
					sawDuration = true
				}
			}
		}
	}
	if !sawError {
		t.Error("expected a provider error metric for the failed transcription")
	}
	if !sawDuration {
		t.Error("expected the transcription duration to be recorded")
	}
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, server.WithSpeller(spell.New()))
	resp, err := http.Get(ts.URL + "/suggest?word=good")
	if err != nil {
		t.Fatalf("GET /suggest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody[struct {
		Word        string   `json:"word"`
		Known       bool     `json:"known"`
		Suggestions []string `json:"suggestions"`
	}](t, resp)
	if !body.Known {
		t.Error("expected 'good' to be a known word")
	}
	if len(body.Suggestions) == 0 {
		t.Error("expected at least one suggestion")
	}
}

func TestSuggest_MissingWord(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, server.WithSpeller(spell.New()))
	resp, err := http.Get(ts.URL + "/suggest")
	if err != nil {
		t.Fatalf("GET /suggest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSuggest_NotConfigured(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/suggest?word=good")
	if err != nil {
		t.Fatalf("GET /suggest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", resp.StatusCode)
	}
}

func TestLexicon_NotConfigured(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/lexicon/custom", map[string]string{"wrong": "x", "right": "y"})
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", resp.StatusCode)
	}
}

func TestListCorrections(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	ts := newTestServer(t, server.WithStore(st))

	for i := 0; i < 3; i++ {
		postJSON(t, ts.URL+"/correct", map[string]any{"text": fmt.Sprintf("dis is text %d", i)})
	}

	resp, err := http.Get(ts.URL + "/corrections?limit=2")
	if err != nil {
		t.Fatalf("GET /corrections: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody[struct {
		Corrections []store.CorrectionRecord `json:"corrections"`
	}](t, resp)
	if len(body.Corrections) != 2 {
		t.Fatalf("expected 2 records, got %d", len(body.Corrections))
	}
	if body.Corrections[0].OriginalText != "dis is text 2" {
		t.Errorf("expected newest record first, got %q", body.Corrections[0].OriginalText)
	}
}

func TestSaveCorrection_Manual(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	ts := newTestServer(t, server.WithStore(st))

	resp := postJSON(t, ts.URL+"/corrections", map[string]any{
		"original_text":  "dis is gud",
		"corrected_text": "This is good",
		"confidence":     0.95,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	body := decodeBody[store.CorrectionRecord](t, resp)
	if body.ID == 0 {
		t.Error("expected an assigned record id")
	}
	if body.Method != correction.MethodManual {
		t.Errorf("method = %q, want manual", body.Method)
	}
	if body.Language != correction.LanguageEnglish {
		t.Errorf("language = %q, want classified en", body.Language)
	}

	rec, err := st.GetCorrection(t.Context(), body.ID)
	if err != nil {
		t.Fatalf("GetCorrection returned error: %v", err)
	}
	if rec.CorrectedText != "This is good" || rec.Method != correction.MethodManual {
		t.Errorf("stored record = %+v", rec)
	}
}

func TestSaveCorrection_RequiresBothTexts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, server.WithStore(store.NewMemStore()))
	resp := postJSON(t, ts.URL+"/corrections", map[string]any{
		"original_text": "dis is gud",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSaveCorrection_RejectsBadConfidence(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, server.WithStore(store.NewMemStore()))
	resp := postJSON(t, ts.URL+"/corrections", map[string]any{
		"original_text":  "dis is gud",
		"corrected_text": "This is good",
		"confidence":     1.5,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSetDefaults_AppliesToLaterRequests(t *testing.T) {
	t.Parallel()

	srv := server.New()
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	resp := postJSON(t, ts.URL+"/correct", map[string]any{"text": "dis is gud"})
	body := decodeBody[struct {
		Result *correction.Result `json:"result"`
	}](t, resp)
	if body.Result.CorrectedText != "This is good" {
		t.Fatalf("expected rules applied initially, got %q", body.Result.CorrectedText)
	}

	srv.SetDefaults(correction.Config{UseRules: false, UseGenerative: false}, 2)

	resp = postJSON(t, ts.URL+"/correct", map[string]any{"text": "dis is gud"})
	body = decodeBody[struct {
		Result *correction.Result `json:"result"`
	}](t, resp)
	if body.Result.CorrectedText != "dis is gud" {
		t.Errorf("expected new defaults to disable rules, got %q", body.Result.CorrectedText)
	}
}

func TestGetCorrection_NotFound(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, server.WithStore(store.NewMemStore()))
	resp, err := http.Get(ts.URL + "/corrections/99")
	if err != nil {
		t.Fatalf("GET /corrections/99: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetTranscript_BadID(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, server.WithStore(store.NewMemStore()))
	resp, err := http.Get(ts.URL + "/transcripts/abc")
	if err != nil {
		t.Fatalf("GET /transcripts/abc: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
