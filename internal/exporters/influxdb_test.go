package exporters

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iphands/llamafix-proxy/internal/stats"
)

func TestNewInfluxDBExporter_RequiresURL(t *testing.T) {
	_, err := NewInfluxDBExporter(InfluxDBConfig{Bucket: "b"})
	assert.Error(t, err)
}

func TestNewInfluxDBExporter_RequiresBucket(t *testing.T) {
	_, err := NewInfluxDBExporter(InfluxDBConfig{URL: "http://localhost:8086"})
	assert.Error(t, err)
}

func TestInfluxDBExporter_Name(t *testing.T) {
	exp, err := NewInfluxDBExporter(InfluxDBConfig{URL: "http://localhost:8086", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "influxdb", exp.Name())
}

func TestInfluxDBExporter_ExportSendsLineProtocol(t *testing.T) {
	var gotBody string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	exp, err := NewInfluxDBExporter(InfluxDBConfig{
		URL: server.URL, Org: "llamafix", Bucket: "metrics", Token: "secret-token",
	})
	require.NoError(t, err)

	m := stats.RequestMetrics{
		Model:        "qwen3-coder",
		Streaming:    true,
		FinishReason: "stop",
		Timestamp:    time.Now(),
	}
	err = exp.Export(context.Background(), m)
	require.NoError(t, err)

	assert.Contains(t, gotBody, "llama_request")
	assert.Contains(t, gotBody, "model=qwen3-coder")
	assert.Equal(t, "Token secret-token", gotAuth)
}

func TestInfluxDBExporter_ExportUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	exp, err := NewInfluxDBExporter(InfluxDBConfig{URL: server.URL, Bucket: "metrics"})
	require.NoError(t, err)

	err = exp.Export(context.Background(), stats.RequestMetrics{Timestamp: time.Now()})
	assert.Error(t, err)
	var expErr *ExportError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, "authentication error", expErr.Kind)
}

func TestInfluxDBExporter_ExportServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	exp, err := NewInfluxDBExporter(InfluxDBConfig{URL: server.URL, Bucket: "metrics"})
	require.NoError(t, err)

	err = exp.Export(context.Background(), stats.RequestMetrics{Timestamp: time.Now()})
	assert.Error(t, err)
}

func TestInfluxDBExporter_FlushAndShutdownAreNoop(t *testing.T) {
	exp, err := NewInfluxDBExporter(InfluxDBConfig{URL: "http://localhost:8086", Bucket: "b"})
	require.NoError(t, err)
	assert.NoError(t, exp.Flush(context.Background()))
	assert.NoError(t, exp.Shutdown(context.Background()))
}
