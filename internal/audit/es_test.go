package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/identity/internal/events"
)

type fakeES struct {
	mu       sync.Mutex
	paths    []string
	docs     []events.Event
	failDocs bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodGet && r.URL.Path == "/" {
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)

	if f.failDocs {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"unavailable"}`)
		return
	}

	var e events.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err == nil {
		f.docs = append(f.docs, e)
	}
	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, `{"result":"created"}`)
}

func TestIndexer_Publish(t *testing.T) {
	t.Parallel()

	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := NewClient(srv.URL, "", "")
	require.NoError(t, err)

	idx := NewIndexer(client, "identity-audit")
	e := events.Event{Type: events.TokenRevoked, UserID: "u-1", TokenID: "t-1", OccurredAt: time.Now().UTC()}
	require.NoError(t, idx.Publish(context.Background(), e))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.docs, 1)
	assert.Equal(t, events.TokenRevoked, fake.docs[0].Type)
	assert.Equal(t, "t-1", fake.docs[0].TokenID)
	require.Len(t, fake.paths, 1)
	assert.True(t, strings.HasPrefix(fake.paths[0], "POST /identity-audit/_doc"), fake.paths[0])
}

func TestIndexer_PublishErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(&fakeES{failDocs: true})
	defer srv.Close()

	client, err := NewClient(srv.URL, "", "")
	require.NoError(t, err)

	err = NewIndexer(client, "identity-audit").Publish(context.Background(), events.Event{Type: events.UserLoggedIn})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity-audit")
}
