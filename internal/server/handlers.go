package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/internal/store"
	"github.com/pulox/pulox/pkg/provider/asr"
)

// maxBodyBytes caps request bodies. Audio uploads get a higher ceiling.
const (
	maxBodyBytes      = 1 << 20  // 1 MiB
	maxAudioBodyBytes = 64 << 20 // 64 MiB
)

// correctOptions are the per-request correction overrides shared by the
// single, batch, and websocket endpoints. Pointer fields distinguish "omitted"
// from an explicit false.
type correctOptions struct {
	Level                   string  `json:"level,omitempty"`
	UseRules                *bool   `json:"use_rules,omitempty"`
	UseGenerative           *bool   `json:"use_generative,omitempty"`
	LanguageHint            string  `json:"language_hint,omitempty"`
	MinGenerativeConfidence float64 `json:"min_generative_confidence,omitempty"`
}

type correctRequest struct {
	Text string `json:"text"`
	correctOptions
}

type correctResponse struct {
	Result *correction.Result `json:"result"`
	ID     int64              `json:"id,omitempty"`
	Cached bool               `json:"cached,omitempty"`
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	cfg := s.requestConfig(req.correctOptions)

	if s.lex != nil {
		cached, hit, err := s.lex.CachedResult(r.Context(), req.Text, cfg)
		if err != nil {
			s.log.WarnContext(r.Context(), "result cache lookup failed", "err", err)
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(r.Context(), hit)
		}
		if hit {
			writeJSON(w, http.StatusOK, correctResponse{Result: cached, Cached: true})
			return
		}
	}

	corrector, _ := s.currentCorrector(r.Context())
	res := corrector.Correct(r.Context(), req.Text, cfg)

	if s.lex != nil {
		if err := s.lex.CacheResult(r.Context(), req.Text, cfg, res); err != nil {
			s.log.WarnContext(r.Context(), "result cache write failed", "err", err)
		}
	}

	resp := correctResponse{Result: res}
	if s.records != nil {
		rec := store.NewCorrectionRecord(res)
		if err := s.records.SaveCorrection(r.Context(), rec); err != nil {
			s.log.WarnContext(r.Context(), "correction record save failed", "err", err)
		} else {
			resp.ID = rec.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	Texts []string `json:"texts"`
	correctOptions
}

type batchResponse struct {
	Results []*correction.Result `json:"results"`
}

func (s *Server) handleCorrectBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts is required")
		return
	}

	_, runner := s.currentCorrector(r.Context())
	results, err := runner.Run(r.Context(), req.Texts, s.requestConfig(req.correctOptions))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

type transcribeResponse struct {
	ID       int64         `json:"id,omitempty"`
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Duration float64       `json:"duration,omitempty"`
	Segments []asr.Segment `json:"segments,omitempty"`
}

// handleTranscribe accepts a multipart upload with an "audio" file part and
// an optional "language" field, forwards it to the ASR provider, and runs
// language classification over the transcript.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusNotImplemented, "no transcription provider configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBodyBytes)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file part is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}

	started := time.Now()
	transcript, err := s.transcriber.Transcribe(r.Context(), asr.Request{
		Audio:    audio,
		Filename: header.Filename,
		Language: r.FormValue("language"),
	})
	if s.metrics != nil {
		s.metrics.TranscriptionDuration.Record(r.Context(), time.Since(started).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordProviderError(r.Context(), "asr", "transcribe")
		}
		s.log.ErrorContext(r.Context(), "transcription failed", "err", err)
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	lang := correction.Language(transcript.Language)
	if !lang.IsValid() {
		lang = correction.Classify(transcript.Text)
	}

	resp := transcribeResponse{
		Text:     transcript.Text,
		Language: string(lang),
		Duration: transcript.Duration,
		Segments: transcript.Segments,
	}
	if s.records != nil {
		rec := &store.TranscriptRecord{
			Text:     transcript.Text,
			Language: lang,
			Source:   header.Filename,
			Duration: transcript.Duration,
			Segments: transcript.Segments,
		}
		if err := s.records.SaveTranscript(r.Context(), rec); err != nil {
			s.log.WarnContext(r.Context(), "transcript record save failed", "err", err)
		} else {
			resp.ID = rec.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type suggestResponse struct {
	Word        string   `json:"word"`
	Known       bool     `json:"known"`
	Suggestions []string `json:"suggestions"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if s.speller == nil {
		writeError(w, http.StatusNotImplemented, "no spell checker configured")
		return
	}

	word := r.URL.Query().Get("word")
	if word == "" {
		writeError(w, http.StatusBadRequest, "word query parameter is required")
		return
	}

	max := 5
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		max = n
	}

	suggestions := s.speller.Suggest(word, max)
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, suggestResponse{
		Word:        word,
		Known:       s.speller.Known(word),
		Suggestions: suggestions,
	})
}

type lexiconPutRequest struct {
	Wrong string `json:"wrong"`
	Right string `json:"right"`
	Type  string `json:"type,omitempty"`
}

func (s *Server) handleLexiconPut(w http.ResponseWriter, r *http.Request) {
	if s.lex == nil {
		writeError(w, http.StatusNotImplemented, "no lexicon store configured")
		return
	}

	var req lexiconPutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Wrong == "" || req.Right == "" {
		writeError(w, http.StatusBadRequest, "wrong and right are required")
		return
	}

	if err := s.lex.Put(r.Context(), req.Wrong, req.Right, correction.ErrorType(req.Type)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.markStale()
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleLexiconDelete(w http.ResponseWriter, r *http.Request) {
	if s.lex == nil {
		writeError(w, http.StatusNotImplemented, "no lexicon store configured")
		return
	}

	word := r.PathValue("word")
	if word == "" {
		writeError(w, http.StatusBadRequest, "word is required")
		return
	}

	if err := s.lex.Delete(r.Context(), word); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.markStale()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusNotImplemented, "no record store configured")
		return
	}

	opts, ok := listOpts(w, r)
	if !ok {
		return
	}
	records, err := s.records.ListTranscripts(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcripts": records})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusNotImplemented, "no record store configured")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	rec, err := s.records.GetTranscript(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transcript not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type saveCorrectionRequest struct {
	OriginalText  string              `json:"original_text"`
	CorrectedText string              `json:"corrected_text"`
	Language      string              `json:"language,omitempty"`
	Confidence    float64             `json:"confidence,omitempty"`
	Changes       []correction.Change `json:"changes,omitempty"`
}

// handleSaveCorrection stores a reviewer-supplied correction. These show up in
// listings alongside pipeline output, tagged with the manual method.
func (s *Server) handleSaveCorrection(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusNotImplemented, "no record store configured")
		return
	}

	var req saveCorrectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OriginalText == "" || req.CorrectedText == "" {
		writeError(w, http.StatusBadRequest, "original_text and corrected_text are required")
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be between 0 and 1")
		return
	}

	lang := correction.Language(req.Language)
	if req.Language != "" && !lang.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown language label")
		return
	}
	if req.Language == "" {
		lang = correction.Classify(req.CorrectedText)
	}

	changes := req.Changes
	if changes == nil {
		changes = []correction.Change{}
	}
	rec := &store.CorrectionRecord{
		OriginalText:  req.OriginalText,
		CorrectedText: req.CorrectedText,
		Language:      lang,
		Method:        correction.MethodManual,
		Confidence:    req.Confidence,
		Changes:       changes,
	}
	if err := s.records.SaveCorrection(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusNotImplemented, "no record store configured")
		return
	}

	opts, ok := listOpts(w, r)
	if !ok {
		return
	}
	records, err := s.records.ListCorrections(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"corrections": records})
}

func (s *Server) handleGetCorrection(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusNotImplemented, "no record store configured")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	rec, err := s.records.GetCorrection(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "correction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// listOpts parses pagination and filter query parameters. On a parse error it
// writes a 400 response and returns ok=false.
func listOpts(w http.ResponseWriter, r *http.Request) (store.ListOpts, bool) {
	var opts store.ListOpts
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return opts, false
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return opts, false
		}
		opts.Offset = n
	}
	if v := q.Get("language"); v != "" {
		lang := correction.Language(v)
		if !lang.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown language label")
			return opts, false
		}
		opts.Language = lang
	}
	return opts, true
}

// decodeJSON reads a JSON body into dst. On failure it writes a 400 response
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
