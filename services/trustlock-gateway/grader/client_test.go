package grader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"glittr/native/escrow"
)

func TestClientScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/score" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.JobID != "job-1" {
			t.Fatalf("unexpected job id: %s", req.JobID)
		}
		_ = json.NewEncoder(w).Encode(escrow.VerificationResult{Score: 88, Strengths: []string{"clean"}})
	}))
	defer srv.Close()

	client := New(srv.URL, "key-1", 5*time.Second, 0)
	result, err := client.Score(context.Background(), Request{JobID: "job-1", Files: []string{"a"}})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.Score != 88 {
		t.Fatalf("unexpected score: %d", result.Score)
	}
}

func TestClientRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(escrow.VerificationResult{Score: 70})
	}))
	defer srv.Close()

	client := New(srv.URL, "", 5*time.Second, 2)
	result, err := client.Score(context.Background(), Request{JobID: "job-1"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.Score != 70 || calls.Load() != 2 {
		t.Fatalf("unexpected result score=%d calls=%d", result.Score, calls.Load())
	}
}

func TestClientRejectsOutOfRangeScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(escrow.VerificationResult{Score: 150})
	}))
	defer srv.Close()

	client := New(srv.URL, "", 5*time.Second, 0)
	if _, err := client.Score(context.Background(), Request{JobID: "job-1"}); err == nil {
		t.Fatal("expected error for out-of-range score")
	}
}

func TestClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := New(srv.URL, "", 5*time.Second, 5)
	if _, err := client.Score(ctx, Request{JobID: "job-1"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDeterministicStableAndBounded(t *testing.T) {
	stub := Deterministic{}
	req := Request{JobID: "job-1", Files: []string{"a"}, Manifest: "abcdef"}
	first, err := stub.Score(context.Background(), req)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	second, _ := stub.Score(context.Background(), req)
	if first.Score != second.Score {
		t.Fatal("stub should be deterministic")
	}
	if first.Score < 55 || first.Score > 95 {
		t.Fatalf("score out of band: %d", first.Score)
	}
	empty, _ := stub.Score(context.Background(), Request{JobID: "job-2"})
	if empty.Score != 0 {
		t.Fatalf("empty submission should score zero, got %d", empty.Score)
	}
}
