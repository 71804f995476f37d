package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBundle struct {
	mock.Mock
}

func (m *mockBundle) Output(name string) ([]byte, bool) {
	args := m.Called(name)
	data, _ := args.Get(0).([]byte)
	return data, args.Bool(1)
}

func (m *mockBundle) OutputNames() []string {
	names, _ := m.Called().Get(0).([]string)
	return names
}

func (m *mockBundle) Result() *domain.BuildResult {
	r, _ := m.Called().Get(0).(*domain.BuildResult)
	return r
}

func (m *mockBundle) LastSuccessful() *domain.BuildResult {
	r, _ := m.Called().Get(0).(*domain.BuildResult)
	return r
}

func (m *mockBundle) Stage() domain.Stage {
	return m.Called().Get(0).(domain.Stage)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestServer_ServesOutputs(t *testing.T) {
	b := new(mockBundle)
	b.On("Output", "main.js").Return([]byte("console.log(1)"), true)
	b.On("Output", "logo.3f2a.png").Return([]byte{0x89, 'P', 'N', 'G'}, true)
	b.On("Output", "missing.js").Return(nil, false)
	b.On("LastSuccessful").Return(&domain.BuildResult{Stage: domain.StageDone})

	h := NewHandler(b)

	w := get(t, h, "/main.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(t, h, "/logo.3f2a.png?v=1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = get(t, h, "/missing.js")
	assert.Equal(t, http.StatusNotFound, w.Code)

	b.AssertExpectations(t)
}

func TestServer_NoBuildYet(t *testing.T) {
	b := new(mockBundle)
	b.On("Output", "main.js").Return(nil, false)
	b.On("LastSuccessful").Return(nil)

	w := get(t, NewHandler(b), "/main.js")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_Status(t *testing.T) {
	b := new(mockBundle)
	b.On("Stage").Return(domain.StageFailed)
	b.On("OutputNames").Return([]string{"main.js", "manifest.json"})
	b.On("Result").Return(&domain.BuildResult{
		BuildID:  "b-1",
		Stage:    domain.StageFailed,
		Errors:   []error{errors.New("cannot resolve ./gone")},
		Warnings: []error{errors.New("optional ./maybe missing")},
		Stats:    domain.BuildStats{Modules: 3},
	})

	w := get(t, NewHandler(b), "/__bale/status")
	require.Equal(t, http.StatusOK, w.Code)

	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, domain.StageFailed, st.Stage)
	assert.Equal(t, "b-1", st.BuildID)
	assert.False(t, st.Succeeded)
	assert.Equal(t, []string{"cannot resolve ./gone"}, st.Errors)
	assert.Equal(t, []string{"optional ./maybe missing"}, st.Warnings)
	assert.Equal(t, 3, st.Stats.Modules)
	assert.Equal(t, []string{"main.js", "manifest.json"}, st.Outputs)
}

func TestServer_Manifest(t *testing.T) {
	b := new(mockBundle)
	b.On("Output", "manifest.json").Return([]byte(`{"buildId":"x"}`), true).Once()
	b.On("Output", "manifest.json").Return(nil, false).Once()
	h := NewHandler(b)

	w := get(t, h, "/__bale/manifest")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"buildId":"x"}`, w.Body.String())

	w = get(t, h, "/__bale/manifest")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bale_builds_total 1\n"))
	})
	h := NewHandler(new(mockBundle), WithMetrics(metrics))

	w := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bale_builds_total")
}

func TestServer_Events(t *testing.T) {
	events := NewEvents("/app", nil)
	h := NewHandler(new(mockBundle), WithEvents(events))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/__bale/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(w, req)
	}()

	require.Eventually(t, func() bool { return events.Len() == 1 }, time.Second, 5*time.Millisecond)

	events.Hooks().OnBuildDone(context.Background(), &domain.BuildResult{
		BuildID: "b-2",
		Stage:   domain.StageDone,
		Rebuilt: []domain.ModuleID{"/app/src/a.js"},
		Chunks:  []*domain.Chunk{{Name: "main", OutputFilename: "main.js"}},
	})
	// Delivery is asynchronous; give the handler a moment to write.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "event: build")
	assert.Contains(t, body, `"build_id":"b-2"`)
	assert.Contains(t, body, `"rebuilt":["src/a.js"]`)
	assert.Contains(t, body, `"chunks":["main.js"]`)
	assert.Equal(t, 0, events.Len())
}

func TestEvents_SlowClientDropsMessages(t *testing.T) {
	events := NewEvents("/", nil)
	ch, cancel := events.Subscribe()
	defer cancel()

	for i := 0; i < 20; i++ {
		events.Broadcast("x")
	}
	assert.Len(t, ch, 10)

	cancel()
	cancel()
	assert.Equal(t, 0, events.Len())
}
