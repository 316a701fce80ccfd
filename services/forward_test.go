package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/toftmakemore/makemoreV2/models"
)

func TestForwarder_SendsPayload(t *testing.T) {
	var received forwardPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer server.Close()

	forwarder := NewForwarder(server.URL, server.Client())
	tenant := &models.Tenant{ID: uuid.New(), DealerID: "1234", FacebookPageID: "page-1", PageToken: "tok"}
	post := &models.PostUnit{ID: uuid.New(), Type: models.PostTypeSingle, Status: models.PostStatusPending}

	if err := forwarder.Send(context.Background(), tenant, post); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if received.DealerID != "1234" || received.PageID != "page-1" {
		t.Fatalf("tenant routing fields missing: %+v", received)
	}
	if received.Post == nil || received.Post.ID != post.ID {
		t.Fatalf("post not forwarded")
	}
}

func TestForwarder_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	forwarder := NewForwarder(server.URL, server.Client())
	err := forwarder.Send(context.Background(), &models.Tenant{}, &models.PostUnit{})
	if err == nil {
		t.Fatalf("expected error on 400")
	}
}

func TestForwarder_UnconfiguredIsNoOp(t *testing.T) {
	forwarder := NewForwarder("", nil)
	if err := forwarder.Send(context.Background(), &models.Tenant{}, &models.PostUnit{}); err != nil {
		t.Fatalf("empty url must be a no-op, got %v", err)
	}

	var nilForwarder *Forwarder
	if err := nilForwarder.Send(context.Background(), &models.Tenant{}, &models.PostUnit{}); err != nil {
		t.Fatalf("nil forwarder must be a no-op, got %v", err)
	}
}
