package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/internal/store"
)

// wsWriteTimeout bounds a single outbound frame write.
const wsWriteTimeout = 10 * time.Second

// wsSegment is one inbound text segment on the streaming endpoint. Options
// follow the REST shape and may differ per segment.
type wsSegment struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
	correctOptions
}

// wsResult is the reply for one segment. Error is set instead of Result when
// the segment was rejected.
type wsResult struct {
	Seq    int                `json:"seq"`
	Result *correction.Result `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// handleWS upgrades the connection and corrects inbound text segments one at
// a time, replying in order. The connection closes cleanly when the client
// sends a close frame or the request context ends.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WarnContext(r.Context(), "websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	if s.metrics != nil {
		s.metrics.ActiveStreams.Add(r.Context(), 1)
		defer s.metrics.ActiveStreams.Add(r.Context(), -1)
	}

	ctx := r.Context()
	for {
		var seg wsSegment
		if err := readWSJSON(ctx, conn, &seg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if ctx.Err() != nil {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			s.log.DebugContext(ctx, "websocket read failed", "err", err)
			return
		}

		reply := s.correctSegment(ctx, seg)
		if err := writeWSJSON(ctx, conn, reply); err != nil {
			s.log.DebugContext(ctx, "websocket write failed", "err", err)
			return
		}
	}
}

// correctSegment runs one segment through the pipeline. Records are persisted
// the same way as on the REST endpoint.
func (s *Server) correctSegment(ctx context.Context, seg wsSegment) wsResult {
	if seg.Text == "" {
		return wsResult{Seq: seg.Seq, Error: "text is required"}
	}

	corrector, _ := s.currentCorrector(ctx)
	res := corrector.Correct(ctx, seg.Text, s.requestConfig(seg.correctOptions))

	if s.records != nil {
		if err := s.records.SaveCorrection(ctx, store.NewCorrectionRecord(res)); err != nil {
			s.log.WarnContext(ctx, "correction record save failed", "err", err)
		}
	}
	return wsResult{Seq: seg.Seq, Result: res}
}

// readWSJSON reads one text frame and unmarshals it into dst.
func readWSJSON(ctx context.Context, conn *websocket.Conn, dst any) error {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	if typ != websocket.MessageText {
		return errors.New("expected text frame")
	}
	return json.Unmarshal(data, dst)
}

// writeWSJSON marshals v and writes it as one text frame.
func writeWSJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
