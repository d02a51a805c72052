package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_SearchIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") != "IDENTITY_SEARCH" {
			t.Errorf("unexpected function %s", r.URL.Query().Get("function"))
		}
		switch r.URL.Query().Get("ticker") {
		case "AAPL":
			w.Write([]byte(`{"matches":[
				{"identity":"US0378331005","name":"Apple Inc","score":"0.99"},
				{"identity":"US0378331999","name":"Apple Hospitality","score":"0.41"}
			]}`))
		default:
			w.Write([]byte(`{"matches":[]}`))
		}
	}))
	defer server.Close()

	client := NewClientWithBaseURL("testsvc", "key", server.URL)

	parsed, err := client.SearchIdentity(context.Background(), "AAPL", "Apple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed == nil || parsed.Identity != "US0378331005" {
		t.Errorf("expected the top-ranked match, got %+v", parsed)
	}

	parsed, err = client.SearchIdentity(context.Background(), "GHOST", "")
	if err != nil {
		t.Fatalf("miss should not error: %v", err)
	}
	if parsed != nil {
		t.Errorf("expected nil on no matches, got %+v", parsed)
	}
}

func TestClient_GetMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("identity") {
		case "US0378331005":
			w.Write([]byte(`{"sector":"Technology","country":"United States","asset_type":"Equity"}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	client := NewClientWithBaseURL("testsvc", "key", server.URL)

	parsed, err := client.GetMetadata(context.Background(), "US0378331005")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed == nil || parsed.Sector != "Technology" || parsed.Geography != "United States" {
		t.Errorf("unexpected metadata: %+v", parsed)
	}

	parsed, err = client.GetMetadata(context.Background(), "GHOST")
	if err != nil || parsed != nil {
		t.Errorf("empty overview should be a clean miss, got %+v / %v", parsed, err)
	}
}

func TestServiceList_FallsThroughOnError(t *testing.T) {
	// First service always errors; second holds the answer.
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"matches":[{"identity":"US0378331005","name":"Apple Inc","score":"0.99"}]}`))
	}))
	defer working.Close()

	sl := NewServiceList(time.Second,
		NewClientWithBaseURL("broken", "key", broken.URL),
		NewClientWithBaseURL("working", "key", working.URL),
	)

	parsed, svcName := sl.SearchIdentity(context.Background(), "AAPL", "")
	if parsed == nil || parsed.Identity != "US0378331005" {
		t.Fatalf("expected fallback hit, got %+v", parsed)
	}
	if svcName != "working" {
		t.Errorf("expected provenance from the working service, got %q", svcName)
	}
}

func TestServiceList_AllMiss(t *testing.T) {
	miss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"matches":[]}`))
	}))
	defer miss.Close()

	sl := NewServiceList(time.Second, NewClientWithBaseURL("only", "key", miss.URL))
	parsed, svcName := sl.SearchIdentity(context.Background(), "GHOST", "")
	if parsed != nil || svcName != "" {
		t.Errorf("expected total miss, got %+v / %q", parsed, svcName)
	}
}

func TestServiceList_Empty(t *testing.T) {
	var nilList *ServiceList
	if !nilList.Empty() {
		t.Error("nil list should be empty")
	}
	if !NewServiceList(time.Second).Empty() {
		t.Error("zero-service list should be empty")
	}
	if NewServiceList(time.Second, NewClient("a", "", "")).Empty() {
		t.Error("configured list should not be empty")
	}
}
