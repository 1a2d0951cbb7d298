package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landscapes2/capture"
)

type fakeTrigger struct {
	mu      sync.Mutex
	allow   bool
	starts  int
	ctx     context.Context
	snap    capture.Snapshot
	doneErr error

	// block keeps a started run going until its context is cancelled.
	block   bool
	running atomic.Bool
	stopped chan struct{}
}

func (f *fakeTrigger) StartAsync(ctx context.Context, done func(*capture.RunState, error)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.allow {
		return false
	}
	f.allow = false
	f.starts++
	f.ctx = ctx
	if !f.block {
		done(capture.NewRunState(true), f.doneErr)
		return true
	}

	f.running.Store(true)
	f.stopped = make(chan struct{})
	go func() {
		<-ctx.Done()
		// still flushing after cancellation
		time.Sleep(50 * time.Millisecond)
		close(f.stopped)
		f.running.Store(false)
		done(nil, ctx.Err())
	}()
	return true
}

func (f *fakeTrigger) Snapshot() capture.Snapshot { return f.snap }

func (f *fakeTrigger) Running() bool { return f.running.Load() }

func newHandler(trig Trigger) http.Handler {
	return New(trig, zerolog.Nop()).Handler()
}

func TestPostCapture_Starts(t *testing.T) {
	trig := &fakeTrigger{allow: true}
	r := newHandler(trig)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/capture", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"started":true}`, rec.Body.String())
	assert.Equal(t, 1, trig.starts)
	// runs outlive the request
	assert.NoError(t, trig.ctx.Err())
}

func TestPostCapture_SecondStartIsNoop(t *testing.T) {
	trig := &fakeTrigger{allow: true}
	r := newHandler(trig)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/capture", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/capture", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Started)
	assert.Equal(t, 1, trig.starts)
}

func TestGetCapture_ReturnsSnapshot(t *testing.T) {
	trig := &fakeTrigger{snap: capture.Snapshot{
		ID:          "run-1",
		Status:      capture.Aborted,
		Frames:      12,
		TotalFrames: 120,
		Error:       "boom",
	}}
	r := newHandler(trig)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/capture", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got capture.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, trig.snap, got)
}

func TestOptions_Preflight(t *testing.T) {
	r := newHandler(&fakeTrigger{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/capture", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Body.String())
}

func TestHealthLive(t *testing.T) {
	r := newHandler(&fakeTrigger{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	taskStopped := make(chan struct{})
	task := func(ctx context.Context) error {
		<-ctx.Done()
		close(taskStopped)
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, "127.0.0.1:0", New(&fakeTrigger{}, zerolog.Nop()), zerolog.Nop(), task)
	}()

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	select {
	case <-taskStopped:
	default:
		t.Fatal("task was not stopped")
	}
}

func TestRun_WaitsForHTTPTriggeredRun(t *testing.T) {
	trig := &fakeTrigger{allow: true, block: true}
	srv := New(trig, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/capture", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, trig.Running())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, "127.0.0.1:0", srv, zerolog.Nop())
	}()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.ErrorIs(t, trig.ctx.Err(), context.Canceled)
	assert.False(t, trig.Running())
	select {
	case <-trig.stopped:
	default:
		t.Fatal("Run returned before the capture stopped")
	}
}

func TestDrain_GivesUpWhenContextExpires(t *testing.T) {
	trig := &fakeTrigger{}
	trig.running.Store(true)
	srv := New(trig, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Drain(ctx), context.DeadlineExceeded)
}
