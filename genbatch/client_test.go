package genbatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmit(t *testing.T) {
	var captured submitPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages/batches" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "batch_abc", "processing_status": "in_progress"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	defer client.Close()

	job, err := client.Submit(context.Background(), []Request{
		{CorrelationID: "p1_t1", Prompt: "Reply to this post", MaxTokens: 120},
		{CorrelationID: "p1_t2", Prompt: "Reply to that post", MaxTokens: 120},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if job.ID != "batch_abc" {
		t.Errorf("expected job id batch_abc, got %q", job.ID)
	}
	if len(captured.Requests) != 2 {
		t.Fatalf("expected 2 wire requests, got %d", len(captured.Requests))
	}
	if captured.Requests[0].CustomID != "p1_t1" {
		t.Errorf("expected custom_id p1_t1, got %q", captured.Requests[0].CustomID)
	}
	if captured.Requests[0].Params.Model != "test-model" {
		t.Errorf("expected configured model, got %q", captured.Requests[0].Params.Model)
	}
	if captured.Requests[0].Params.MaxTokens != 120 {
		t.Errorf("expected max_tokens 120, got %d", captured.Requests[0].Params.MaxTokens)
	}
}

func TestSubmit_EmptySetRejectedLocally(t *testing.T) {
	client := NewClient("http://localhost:0", "k", "m")
	defer client.Close()

	if _, err := client.Submit(context.Background(), nil); err == nil {
		t.Fatalf("expected local rejection of an empty batch")
	}
}

func TestSubmit_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "m")
	defer client.Close()

	if _, err := client.Submit(context.Background(), []Request{{CorrelationID: "a", Prompt: "p"}}); err == nil {
		t.Fatalf("expected submission failure to surface")
	}
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages/batches/batch_abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "batch_abc", "processing_status": "ended"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "m")
	defer client.Close()

	job, err := client.Status(context.Background(), "batch_abc")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if job.Status != StatusEnded {
		t.Errorf("expected ended, got %q", job.Status)
	}
}

func TestResults_DecodesJSONL(t *testing.T) {
	body := `{"custom_id":"p1_t1","result":{"type":"succeeded","message":{"content":[{"text":"Check your local code first."}]}}}
{"custom_id":"p1_t2","result":{"type":"errored"}}
{"custom_id":"p2_t1","result":{"type":"expired"}}
not json at all
{"custom_id":"p2_t2","result":{"type":"something_new"}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages/batches/batch_abc/results" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "m")
	defer client.Close()

	lines, err := client.Results(context.Background(), "batch_abc")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}

	if lines[0].Outcome != OutcomeSucceeded || lines[0].Text != "Check your local code first." {
		t.Errorf("unexpected first line %+v", lines[0])
	}
	if lines[1].Outcome != OutcomeErrored {
		t.Errorf("expected errored, got %+v", lines[1])
	}
	if lines[2].Outcome != OutcomeExpired {
		t.Errorf("expected expired, got %+v", lines[2])
	}
	if lines[3].Outcome != OutcomeInvalid {
		t.Errorf("malformed line must come back invalid, got %+v", lines[3])
	}
	if lines[4].Outcome != OutcomeInvalid {
		t.Errorf("unknown result type must come back invalid, got %+v", lines[4])
	}
}
