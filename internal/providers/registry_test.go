package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type namedAdapter struct{ name string }

func (a *namedAdapter) Name() string { return a.name }
func (a *namedAdapter) FetchDecomposition(context.Context, string, string) (*RawDecomposition, error) {
	return nil, nil
}

func TestRegistry_ExplicitBeatsPrefix(t *testing.T) {
	fallback := &namedAdapter{name: "fallback"}
	us := &namedAdapter{name: "us-funds"}
	pinned := &namedAdapter{name: "pinned"}

	r := NewRegistry(fallback)
	r.RegisterPrefix("US", us)
	r.RegisterInstrument("US9229087690", pinned)

	if got := r.ForInstrument("US9229087690"); got != pinned {
		t.Errorf("explicit mapping should win, got %s", got.Name())
	}
	if got := r.ForInstrument("US0378331005"); got != us {
		t.Errorf("prefix rule should match, got %s", got.Name())
	}
	if got := r.ForInstrument("DE0005557508"); got != fallback {
		t.Errorf("unmatched identity should hit the fallback, got %s", got.Name())
	}
}

func TestRegistry_LongestPrefixWins(t *testing.T) {
	broad := &namedAdapter{name: "broad"}
	narrow := &namedAdapter{name: "narrow"}

	r := NewRegistry(nil)
	r.RegisterPrefix("US", broad)
	r.RegisterPrefix("US92", narrow)

	if got := r.ForInstrument("US9229087690"); got != narrow {
		t.Errorf("most specific prefix should win, got %s", got.Name())
	}
	if got := r.ForInstrument("US0378331005"); got != broad {
		t.Errorf("broad prefix should still match, got %s", got.Name())
	}
}

func TestRegistry_NoFallback(t *testing.T) {
	r := NewRegistry(nil)
	if got := r.ForInstrument("ANYTHING"); got != nil {
		t.Errorf("expected nil for uncovered instrument, got %v", got)
	}
}

func TestFundProfileAdapter_FetchDecomposition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") != "FUND_PROFILE" {
			t.Errorf("unexpected function %s", r.URL.Query().Get("function"))
		}
		if r.URL.Query().Get("symbol") != "VTI" {
			t.Errorf("unexpected symbol %s", r.URL.Query().Get("symbol"))
		}
		w.Write([]byte(`{"symbol":"VTI","holdings":[
			{"symbol":"AAPL","description":"Apple Inc","weight":"6.2"},
			{"symbol":"MSFT","description":"Microsoft Corp","weight":"5.8"},
			{"symbol":"JUNK","description":"Bad Weight","weight":"n/a"}
		]}`))
	}))
	defer server.Close()

	adapter := NewFundProfileAdapter("test", "key", server.URL)
	raw, err := adapter.FetchDecomposition(context.Background(), "US9229087690", "VTI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Symbol != "VTI" {
		t.Errorf("unexpected symbol %s", raw.Symbol)
	}
	if len(raw.Holdings) != 3 {
		t.Fatalf("expected 3 holdings, got %d", len(raw.Holdings))
	}
	if raw.Holdings[0].Ticker != "AAPL" || raw.Holdings[0].Weight != 6.2 {
		t.Errorf("unexpected first holding: %+v", raw.Holdings[0])
	}
	// Unparseable weights come through as zero, left to the quality gates.
	if raw.Holdings[2].Weight != 0 {
		t.Errorf("unparseable weight should be zero, got %f", raw.Holdings[2].Weight)
	}
}

func TestFundProfileAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := NewFundProfileAdapter("test", "key", server.URL)
	if _, err := adapter.FetchDecomposition(context.Background(), "X", "Y"); err == nil {
		t.Error("expected error on 429")
	}
}
