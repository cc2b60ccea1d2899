package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ServeAndGracefulStop(t *testing.T) {
	listen, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var hookCalls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	hook := func(ctx context.Context) error {
		// Serve must not return while a hook is still working.
		time.Sleep(20 * time.Millisecond)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		hookCalls.Add(1)
		return nil
	}
	s := NewServer(listen.Addr().String(), h, logging.Nop{}, hook)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listen) }()

	resp, err := http.Get("http://" + listen.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestServer_RunListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	s := NewServer(busy.Addr().String(), http.NotFoundHandler(), logging.Nop{})
	assert.Error(t, s.Run(context.Background()))
}

func TestServer_HookErrorIsReturned(t *testing.T) {
	listen, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var order []string
	first := func(context.Context) error {
		order = append(order, "first")
		return errors.New("sessions still open")
	}
	second := func(context.Context) error {
		order = append(order, "second")
		return nil
	}
	s := NewServer(listen.Addr().String(), http.NotFoundHandler(), logging.Nop{}, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Serve(ctx, listen)
	assert.ErrorContains(t, err, "sessions still open")
	assert.Equal(t, []string{"first", "second"}, order)
}
