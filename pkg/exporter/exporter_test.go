package exporter

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddr grabs an address that is (very likely) free to bind to.
//
func freeAddr(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	return addr
}

// get retries a request until the server under test comes up.
//
func get(t *testing.T, url string) (*http.Response, error) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for {
		resp, err := http.Get(url)
		if err == nil || time.Now().After(deadline) {
			return resp, err
		}

		time.Sleep(10 * time.Millisecond)
	}
}

func TestExporter_ServesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_up",
		Help: "test gauge",
	})
	gauge.Set(1)
	require.NoError(t, registry.Register(gauge))

	addr := freeAddr(t)

	e, err := New(
		WithBindAddress(addr),
		WithGatherer(registry),
		WithLogger(logr.Discard()),
	)
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErrC := make(chan error, 1)
	go func() {
		runErrC <- e.Run(ctx)
	}()

	resp, err := get(t, fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t,
		resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_up 1")

	cancel()

	select {
	case err := <-runErrC:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestExporter_CustomTelemetryPath(t *testing.T) {
	addr := freeAddr(t)

	e, err := New(
		WithBindAddress(addr),
		WithTelemetryPath("/telemetry"),
		WithGatherer(prometheus.NewRegistry()),
		WithLogger(logr.Discard()),
	)
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = e.Run(ctx) }()

	resp, err := get(t, fmt.Sprintf("http://%s/telemetry", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExporter_Healthz(t *testing.T) {
	addr := freeAddr(t)

	e, err := New(
		WithBindAddress(addr),
		WithGatherer(prometheus.NewRegistry()),
		WithLogger(logr.Discard()),
	)
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = e.Run(ctx) }()

	resp, err := get(t, fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExporter_BindFailureIsFatal(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	e, err := New(
		WithBindAddress(listener.Addr().String()),
		WithLogger(logr.Discard()),
	)
	require.NoError(t, err)

	err = e.Run(context.Background())

	assert.Error(t, err)
}

func TestExporter_CloseWithoutRun(t *testing.T) {
	e, err := New(WithLogger(logr.Discard()))
	require.NoError(t, err)

	assert.NoError(t, e.Close())
}
