package services

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kolamai/studio/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reprJSON = `{"dots":[{"x":1,"y":2}],"paths":[{"type":"line","p1":{"x":1,"y":2},"p2":{"x":3,"y":4}}]}`

// fakeKolamAPI stands in for the remote analysis backend. Individual
// endpoints can be failed or stalled per test.
type fakeKolamAPI struct {
	server *httptest.Server

	mu           sync.Mutex
	renderBodies []string
	renderCalls  int

	failSearch    bool
	classifyGate  chan struct{} // when set, classify blocks until closed
	classifyEntry chan struct{} // signalled once classify has been reached
}

func newFakeKolamAPI(t *testing.T) *fakeKolamAPI {
	t.Helper()
	f := &fakeKolamAPI{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/know-your-kolam", func(w http.ResponseWriter, r *http.Request) {
		if f.classifyEntry != nil {
			f.classifyEntry <- struct{}{}
		}
		if f.classifyGate != nil {
			<-f.classifyGate
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reprJSON)
	})
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if f.failSearch {
			http.Error(w, "index unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"matches":["a.png","b.png"]}`)
	})
	mux.HandleFunc("/api/predict", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"prediction":"Tamil Nadu"}`)
	})
	mux.HandleFunc("/api/create_kolam", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.renderBodies = append(f.renderBodies, string(body))
		f.renderCalls++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"message":"Kolam created","file":"outputs/img.png"}`)
	})
	mux.HandleFunc("/api/recreate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"recreatedImage":"out/r1.png"}`)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeKolamAPI) renders() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bodies := make([]string, len(f.renderBodies))
	copy(bodies, f.renderBodies)
	return f.renderCalls, bodies
}

func newTestOperationService(t *testing.T, api *fakeKolamAPI) (*OperationService, *TimelineStore, *GalleryService) {
	t.Helper()
	kolam := NewKolamService(api.server.URL)
	timeline := NewTimelineStore()
	gallery := NewGalleryService(storage.NewMemoryStore(), api.server.URL)
	return NewOperationService(kolam, timeline, gallery), timeline, gallery
}

func TestRunAnalysisHappyPath(t *testing.T) {
	api := newFakeKolamAPI(t)
	svc, timeline, gallery := newTestOperationService(t, api)

	record, err := svc.RunAnalysis("kolam.png", []byte("image-bytes"))
	require.NoError(t, err)
	require.NotNil(t, record)

	// One analysis record with all three payloads, verbatim
	require.NotNil(t, record.Analysis)
	assert.JSONEq(t, reprJSON, string(record.Analysis.Representation))
	assert.Equal(t, []string{"a.png", "b.png"}, record.Analysis.Matches)
	assert.Equal(t, "Tamil Nadu", record.Analysis.Prediction)

	// The dependent render runs in the background with the verbatim document
	svc.Wait()

	calls, bodies := api.renders()
	require.Equal(t, 1, calls)
	assert.JSONEq(t, reprJSON, bodies[0])

	records := timeline.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "analysis", string(records[0].Kind))
	assert.Equal(t, "render", string(records[1].Kind))
	assert.Equal(t, "outputs/img.png", records[1].Image)

	// The render landed in the gallery
	list := gallery.List()
	require.Len(t, list, 1)
	assert.Equal(t, "My Kolam #1", list[0].Title)
	assert.Equal(t, api.server.URL+"/outputs/img.png", list[0].Image)

	pending := svc.Pending()
	assert.False(t, pending.Analysis)
	assert.False(t, pending.Render)
}

func TestRunAnalysisJoinAtomicity(t *testing.T) {
	api := newFakeKolamAPI(t)
	api.failSearch = true
	svc, timeline, _ := newTestOperationService(t, api)

	record, err := svc.RunAnalysis("kolam.png", []byte("image-bytes"))
	require.Error(t, err)
	assert.Nil(t, record)

	svc.Wait()

	// Nothing is appended and no render is triggered
	assert.True(t, timeline.IsEmpty())
	calls, _ := api.renders()
	assert.Equal(t, 0, calls)

	// The pending signal has cleared
	pending := svc.Pending()
	assert.False(t, pending.Analysis)
	assert.False(t, pending.Render)
}

func TestRunAnalysisNoImageIsNoOp(t *testing.T) {
	api := newFakeKolamAPI(t)
	svc, timeline, _ := newTestOperationService(t, api)

	record, err := svc.RunAnalysis("kolam.png", nil)
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.True(t, timeline.IsEmpty())
}

func TestRunAnalysisRejectsConcurrentSubmission(t *testing.T) {
	api := newFakeKolamAPI(t)
	api.classifyGate = make(chan struct{})
	api.classifyEntry = make(chan struct{}, 1)
	svc, _, _ := newTestOperationService(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunAnalysis("kolam.png", []byte("image-bytes"))
		done <- err
	}()

	// Wait until the first submission is inside the upstream call
	select {
	case <-api.classifyEntry:
	case <-time.After(5 * time.Second):
		t.Fatal("First submission never reached the classifier")
	}

	_, err := svc.RunAnalysis("kolam.png", []byte("other-bytes"))
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	close(api.classifyGate)
	require.NoError(t, <-done)
	svc.Wait()

	// Once the first run finishes, a new submission is accepted again
	record, err := svc.RunAnalysis("kolam.png", []byte("image-bytes"))
	require.NoError(t, err)
	require.NotNil(t, record)
	svc.Wait()
}

func TestRunRecreate(t *testing.T) {
	api := newFakeKolamAPI(t)
	svc, timeline, gallery := newTestOperationService(t, api)

	record, err := svc.RunRecreate("kolam.png", []byte("image-bytes"))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "recreate", string(record.Kind))
	assert.Equal(t, "out/r1.png", record.Image)

	records := timeline.Records()
	require.Len(t, records, 1)

	list := gallery.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Recreated Kolam #1", list[0].Title)
	assert.Equal(t, api.server.URL+"/out/r1.png", list[0].Image)
}

func TestRunRenderManualDocument(t *testing.T) {
	api := newFakeKolamAPI(t)
	svc, timeline, gallery := newTestOperationService(t, api)

	record, err := svc.RunRender([]byte(reprJSON))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "render", string(record.Kind))
	assert.Equal(t, "outputs/img.png", record.Image)

	require.Len(t, timeline.Records(), 1)
	require.Len(t, gallery.List(), 1)
	assert.Equal(t, "My Kolam #1", gallery.List()[0].Title)
}

func TestGalleryPublishFailureKeepsTimelineRecord(t *testing.T) {
	api := newFakeKolamAPI(t)
	kolam := NewKolamService(api.server.URL)
	timeline := NewTimelineStore()
	gallery := NewGalleryService(brokenWriteStore{}, api.server.URL)
	svc := NewOperationService(kolam, timeline, gallery)

	record, err := svc.RunRecreate("kolam.png", []byte("image-bytes"))
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Len(t, timeline.Records(), 1)
}

// brokenWriteStore fails every write.
type brokenWriteStore struct{}

func (brokenWriteStore) Get(key string) (string, bool, error) { return "", false, nil }
func (brokenWriteStore) Set(key, value string) error {
	return assert.AnError
}
