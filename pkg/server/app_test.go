package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_ShutdownClosesResourcesInOrder(t *testing.T) {
	var closed []string
	boom := errors.New("boom")
	res := Resources{
		{Name: "engine", Close: func() error { closed = append(closed, "engine"); return nil }},
		{Name: "publisher", Close: func() error { closed = append(closed, "publisher"); return boom }},
		{Name: "clickhouse", Close: func() error { closed = append(closed, "clickhouse"); return nil }},
	}
	app := New(nil, nil, nil, nil, res, time.Second)

	err := app.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"engine", "publisher", "clickhouse"}, closed)
}

func TestApp_RunContextReturnsOnCancel(t *testing.T) {
	closed := make(chan struct{})
	app := New(nil, nil, nil, nil, Resources{{Name: "x", Close: func() error { close(closed); return nil }}}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunContext did not return")
	}
	<-closed
}

func TestApp_TasksRunUntilShutdown(t *testing.T) {
	var runs atomic.Int32
	tick := make(chan struct{}, 1)
	tasks := Tasks{
		{Name: "sweep", Interval: 5 * time.Millisecond, Run: func(context.Context) {
			runs.Add(1)
			select {
			case tick <- struct{}{}:
			default:
			}
		}},
		{Name: "disabled", Interval: 0, Run: func(context.Context) { t.Error("zero interval task ran") }},
	}
	app := New(nil, nil, nil, tasks, nil, time.Second)
	require.NoError(t, app.Start(context.Background()))

	select {
	case <-tick:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	require.NoError(t, app.Shutdown(context.Background()))

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "task ran after shutdown")
}
