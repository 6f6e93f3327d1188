package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSerializer_ConcurrentInserts(t *testing.T) {
	s := NewSerializer(engine.New())
	ctx := context.Background()

	_, err := s.Execute(ctx, "CREATE TABLE counters (id INT PRIMARY KEY, owner TEXT)")
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Do(ctx, func(e *engine.Engine) error {
				_, err := e.Insert("counters", map[string]interface{}{"id": i, "owner": "w"})
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	res, err := s.Execute(ctx, "SELECT * FROM counters")
	require.NoError(t, err)
	assert.Len(t, res.Rows, workers)

	res, err = s.Execute(ctx, "INSERT INTO counters (id) VALUES (17)")
	require.NoError(t, err)
	assert.Equal(t, int64(workers+1), res.RowID)
}

func TestSerializer_CancelledWhileWaiting(t *testing.T) {
	s := NewSerializer(engine.New())

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Do(context.Background(), func(*engine.Engine) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Execute(ctx, "CREATE TABLE t (id INT)")
	close(hold)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCategoryInternal, errors.GetCategory(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerializer_PropagatesEngineErrors(t *testing.T) {
	s := NewSerializer(engine.New())
	_, err := s.Execute(context.Background(), "SELECT * FROM nope")
	assert.ErrorIs(t, err, errors.ErrTableNotFound)
}

func TestShutdownMiddleware(t *testing.T) {
	sm := NewShutdownManager(time.Second)
	h := ShutdownMiddleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(1), sm.InFlightCount())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(0), sm.InFlightCount())

	require.NoError(t, sm.Shutdown(context.Background(), "test"))
	assert.True(t, sm.IsShuttingDown())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnaryShutdownInterceptor(t *testing.T) {
	sm := NewShutdownManager(time.Second)
	intercept := UnaryShutdownInterceptor(sm)
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	resp, err := intercept(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	require.NoError(t, sm.Shutdown(context.Background(), "test"))
	_, err = intercept(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestShutdown_ClosersLIFOAndOnce(t *testing.T) {
	sm := NewShutdownManager(time.Second)
	var order []int
	sm.RegisterCloser(CloserFunc(func() error { order = append(order, 1); return nil }))
	sm.RegisterCloser(CloserFunc(func() error { order = append(order, 2); return nil }))

	require.NoError(t, sm.Shutdown(context.Background(), "first"))
	require.NoError(t, sm.Shutdown(context.Background(), "second"))
	assert.Equal(t, []int{2, 1}, order)

	select {
	case <-sm.ShutdownCh():
	default:
		t.Fatal("shutdown channel should be closed")
	}
}

func TestShutdown_DrainTimeout(t *testing.T) {
	sm := NewShutdownManager(30 * time.Millisecond)
	require.True(t, sm.TrackRequest())

	err := sm.Shutdown(context.Background(), "stuck")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 in-flight")
}
