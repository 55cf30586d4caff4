package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

func TestIndexNarrativeEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/ria_narratives":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/ria_narratives/points":
			var body struct {
				Points []struct {
					ID      int64          `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode upsert body: %v", err)
			}
			if len(body.Points) != 1 || body.Points[0].ID != 100 {
				t.Errorf("expected one point with CRD id 100, got %+v", body.Points)
			}
			if body.Points[0].Payload["legal_name"] != "Acme Capital LLC" {
				t.Errorf("expected legal name in payload, got %v", body.Points[0].Payload)
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "ria_narratives", 0.25)
	narrative := domain.Narrative{
		CRD:       100,
		LegalName: "Acme Capital LLC",
		State:     "MO",
		Text:      "Acme Capital LLC is a registered investment adviser.",
		Vector:    []float32{0.1, 0.2},
	}

	if err := client.IndexNarrative(context.Background(), narrative); err != nil {
		t.Fatalf("first IndexNarrative() error = %v", err)
	}
	if err := client.IndexNarrative(context.Background(), narrative); err != nil {
		t.Fatalf("second IndexNarrative() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestSearchSendsScoreThresholdAndMapsIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/ria_narratives/points/search" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode search body: %v", err)
		}
		if body["score_threshold"] != 0.25 {
			t.Errorf("expected score_threshold 0.25, got %v", body["score_threshold"])
		}
		_, _ = w.Write([]byte(`{"result":[{"id":100,"score":0.91,"payload":{"crd":100}},{"id":200,"score":0.42,"payload":{"crd":200}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "ria_narratives", 0.25)
	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, 50)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].CRD != 100 || hits[0].Score != 0.91 {
		t.Fatalf("unexpected first hit %+v", hits[0])
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/ria_narratives" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "ria_narratives", 0)
	err := client.IndexNarrative(context.Background(), domain.Narrative{CRD: 1, Vector: []float32{0.1}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
