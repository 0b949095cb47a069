package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/amillerrr/clipforge/pkg/models"
)

// mockStore is a QueueStore backed by maps.
type mockStore struct {
	nextID   int64
	items    map[int64]*models.QueueItem
	outcomes map[int64]*models.ProcessingOutcome
	err      error
}

func newMockStore() *mockStore {
	return &mockStore{
		nextID:   1,
		items:    make(map[int64]*models.QueueItem),
		outcomes: make(map[int64]*models.ProcessingOutcome),
	}
}

func (m *mockStore) Enqueue(ctx context.Context, req models.EnqueueRequest) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	id := m.nextID
	m.nextID++
	m.items[id] = &models.QueueItem{
		ID:            id,
		SourceKind:    req.SourceKind,
		SourceLocator: req.SourceLocator,
		ProductLink:   req.ProductLink,
		CaptionText:   req.CaptionText,
	}
	return id, nil
}

func (m *mockStore) Fetch(ctx context.Context, id int64) (*models.QueueItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	item, ok := m.items[id]
	if !ok {
		return nil, models.ErrItemNotFound
	}
	return item, nil
}

func (m *mockStore) GetOutcome(ctx context.Context, id int64) (*models.ProcessingOutcome, error) {
	outcome, ok := m.outcomes[id]
	if !ok {
		return nil, models.ErrItemNotFound
	}
	return outcome, nil
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.SourceKind
		locator string
		wantErr bool
	}{
		{"valid https url", models.SourceURL, "https://cdn.example.com/clip.mp4", false},
		{"valid http url", models.SourceURL, "http://cdn.example.com/clip.mp4", false},
		{"valid channel file", models.SourceUploadChannel, "BAACAgUAAxkBAAIB", false},
		{"unknown kind", models.SourceKind("ftp"), "ftp://host/file", true},
		{"empty locator", models.SourceURL, "", true},
		{"bad scheme", models.SourceURL, "ftp://host/file.mp4", true},
		{"no host", models.SourceURL, "https:///clip.mp4", true},
		{"not a url", models.SourceURL, "://broken", true},
		{"too long", models.SourceURL, "https://h.example/" + strings.Repeat("a", MaxLocatorLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSource(tt.kind, tt.locator)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSource(%q, %q) error = %v, wantErr %v", tt.kind, tt.locator, err, tt.wantErr)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	allowedOrigins := []string{"https://example.com", "https://test.com"}
	middleware := CORSMiddleware(allowedOrigins)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "https://example.com")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://example.com")
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "https://malicious.com")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("preflight request", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/test", nil)
		req.Header.Set("Origin", "https://example.com")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want %d", rr.Code, http.StatusNoContent)
		}
	})
}

func TestIsInternalRequest(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       bool
	}{
		{"localhost", "127.0.0.1:8080", true},
		{"10.x network", "10.0.0.1:12345", true},
		{"172.16.x network", "172.16.0.1:12345", true},
		{"192.168.x network", "192.168.1.1:12345", true},
		{"public IP", "203.0.113.1:12345", false},
		{"another public IP", "8.8.8.8:53", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isInternalRequest(tt.remoteAddr); got != tt.want {
				t.Errorf("isInternalRequest(%q) = %v, want %v", tt.remoteAddr, got, tt.want)
			}
		})
	}
}

func TestEnqueueHandler_InvalidMethod(t *testing.T) {
	h := &Handlers{}

	req := httptest.NewRequest("GET", "/enqueue", nil)
	rr := httptest.NewRecorder()

	h.EnqueueHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestEnqueueHandler_InvalidJSON(t *testing.T) {
	h := &Handlers{}

	req := httptest.NewRequest("POST", "/enqueue", bytes.NewBufferString("not json"))
	rr := httptest.NewRecorder()

	h.EnqueueHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestEnqueueHandler_InvalidSource(t *testing.T) {
	h := &Handlers{}

	body := EnqueueRequest{
		SourceKind:    "url",
		SourceLocator: "ftp://host/clip.mp4",
	}
	bodyBytes, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/enqueue", bytes.NewBuffer(bodyBytes))
	rr := httptest.NewRecorder()

	h.EnqueueHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestEnqueueHandler_Accepted(t *testing.T) {
	store := newMockStore()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	h := &Handlers{store: store, log: logger}

	body := EnqueueRequest{
		SourceKind:    "url",
		SourceLocator: "https://cdn.example.com/clip.mp4",
		ProductLink:   models.StringPtr("https://shop.example.com/p/1"),
	}
	bodyBytes, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/enqueue", bytes.NewBuffer(bodyBytes))
	rr := httptest.NewRecorder()

	h.EnqueueHandler(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, want %d", rr.Code, http.StatusAccepted)
	}

	var resp EnqueueResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.ItemID != 1 {
		t.Errorf("ItemID = %d, want 1", resp.ItemID)
	}
	if resp.Status != "queued" {
		t.Errorf("Status = %s, want queued", resp.Status)
	}
	if store.items[1].SourceLocator != "https://cdn.example.com/clip.mp4" {
		t.Errorf("stored locator = %s", store.items[1].SourceLocator)
	}
}

func TestItemStatusHandler(t *testing.T) {
	store := newMockStore()
	id, _ := store.Enqueue(context.Background(), models.EnqueueRequest{
		SourceKind:    models.SourceURL,
		SourceLocator: "https://cdn.example.com/clip.mp4",
	})
	store.outcomes[id] = &models.ProcessingOutcome{
		ItemID: id,
		Status: models.StatusProcessed,
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	h := &Handlers{store: store, log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/items/{id}", h.ItemStatusHandler)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/items/1", nil)
		rr := httptest.NewRecorder()

		mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", rr.Code, http.StatusOK)
		}

		var resp ItemStatusResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Item == nil || resp.Item.ID != id {
			t.Errorf("Item = %+v, want id %d", resp.Item, id)
		}
		if resp.Outcome == nil || resp.Outcome.Status != models.StatusProcessed {
			t.Errorf("Outcome = %+v, want processed", resp.Outcome)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/items/99", nil)
		rr := httptest.NewRecorder()

		mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/items/banana", nil)
		rr := httptest.NewRecorder()

		mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})
}
