package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

type streamFrame struct {
	Type      string                  `json:"type"`
	Content   string                  `json:"content,omitempty"`
	Heartbeat bool                    `json:"heartbeat,omitempty"`
	Answer    string                  `json:"answer,omitempty"`
	Sources   []domain.AggregatedFirm `json:"sources,omitempty"`
	Metadata  *answerMetadata         `json:"metadata,omitempty"`
}

func (rt *Router) handleAskStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	caller, decision, ok := rt.gate(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// A begun stream is a consumed request, so charge before the first byte:
	// Set-Cookie has to ride the response headers anyway.
	rt.charge(w, r, caller)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sse := &sseWriter{w: w, flusher: flusher}
	defer sse.terminate()

	start := time.Now()
	tokens, heartbeats := 0, 0
	for event := range rt.stream.Stream(r.Context(), req.Query, req.Filters.toDomain()) {
		var frame streamFrame
		switch event.Type {
		case domain.EventConnected:
			frame = streamFrame{Type: "connected"}
		case domain.EventToken:
			frame = streamFrame{Type: "token", Content: event.Content, Heartbeat: event.Heartbeat}
			if event.Heartbeat {
				heartbeats++
			} else {
				tokens++
			}
		case domain.EventComplete:
			frame = streamFrame{Type: "complete"}
			if event.Answer != nil {
				meta := answerMetadataFrom(event.Answer, decision)
				frame.Answer = event.Answer.Text
				frame.Sources = event.Answer.Sources
				frame.Metadata = &meta
				rt.recordSearch("ask-stream", &event.Answer.Search, time.Since(start))
				if rt.metrics != nil {
					rt.metrics.RecordAnswer(serviceName, "ask-stream", event.Answer.Degraded)
				}
			}
		default:
			continue
		}
		if !sse.writeData(frame) {
			// Client gone: drain until the producer notices the dead context.
			break
		}
	}

	if rt.metrics != nil {
		rt.metrics.RecordStreamTokens(serviceName, tokens, heartbeats)
	}
}

// sseWriter frames events for the wire and guarantees the terminal
// `data: [DONE]` + `event: end` pair is written exactly once.
type sseWriter struct {
	w          http.ResponseWriter
	flusher    http.Flusher
	broken     bool
	terminated bool
}

func (s *sseWriter) writeData(frame streamFrame) bool {
	if s.broken {
		return false
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		s.broken = true
		return false
	}
	if _, err := s.w.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
		s.broken = true
		return false
	}
	s.flusher.Flush()
	return true
}

func (s *sseWriter) terminate() {
	if s.terminated || s.broken {
		s.terminated = true
		return
	}
	s.terminated = true
	_, _ = s.w.Write([]byte("data: [DONE]\n\n"))
	_, _ = s.w.Write([]byte("event: end\n\n"))
	s.flusher.Flush()
}
