package main

import (
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownDrainsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)

	quit := make(chan os.Signal, 1)
	finished := make(chan struct{})
	go func() {
		waitForShutdown(srv, quit, 5*time.Second)
		close(finished)
	}()

	type result struct {
		status int
		err    error
	}
	resc := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			resc <- result{err: err}
			return
		}
		resp.Body.Close()
		resc <- result{status: resp.StatusCode}
	}()

	// Signal arrives while the request is still being served; the drain
	// must let it finish instead of severing the connection.
	<-started
	quit <- syscall.SIGTERM

	res := <-resc
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return after draining")
	}
}
