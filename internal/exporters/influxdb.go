package exporters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/iphands/llamafix-proxy/internal/config"
	"github.com/iphands/llamafix-proxy/internal/stats"
)

// InfluxDBConfig configures one InfluxDB v2 export destination.
type InfluxDBConfig struct {
	URL                  string
	Org                  string
	Bucket               string
	Token                string
	BatchSize            int
	FlushIntervalSeconds int
}

// InfluxDBConfigFromConfig adapts the configuration document's exporter
// section into an InfluxDBConfig.
func InfluxDBConfigFromConfig(cfg config.InfluxDBConfig) InfluxDBConfig {
	return InfluxDBConfig{
		URL:                  cfg.URL,
		Org:                  cfg.Org,
		Bucket:               cfg.Bucket,
		Token:                cfg.Token,
		BatchSize:            cfg.BatchSize,
		FlushIntervalSeconds: cfg.FlushIntervalSeconds,
	}
}

// InfluxDBExporter writes request metrics to an InfluxDB v2 bucket using
// the line protocol write API.
type InfluxDBExporter struct {
	cfg    InfluxDBConfig
	client *http.Client
}

// NewInfluxDBExporter builds an exporter for the given destination. Returns
// an error if the destination is missing required fields.
func NewInfluxDBExporter(cfg InfluxDBConfig) (*InfluxDBExporter, error) {
	if cfg.URL == "" {
		return nil, configError("influxdb url is required")
	}
	if cfg.Bucket == "" {
		return nil, configError("influxdb bucket is required")
	}
	return &InfluxDBExporter{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}, nil
}

func (e *InfluxDBExporter) Name() string { return "influxdb" }

// Export encodes m as one line-protocol point and writes it to InfluxDB.
func (e *InfluxDBExporter) Export(ctx context.Context, m stats.RequestMetrics) error {
	line, err := encodeLine(m)
	if err != nil {
		return writeError(fmt.Sprintf("build data point: %v", err))
	}
	return e.write(ctx, line)
}

func (e *InfluxDBExporter) Flush(ctx context.Context) error    { return nil }
func (e *InfluxDBExporter) Shutdown(ctx context.Context) error { return e.Flush(ctx) }

func encodeLine(m stats.RequestMetrics) ([]byte, error) {
	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)
	enc.StartLine("llama_request")
	enc.AddTag("model", m.Model)
	enc.AddTag("streaming", strconv.FormatBool(m.Streaming))
	enc.AddTag("finish_reason", m.FinishReason)
	if m.ClientID != "" {
		enc.AddTag("client_id", m.ClientID)
	}
	if m.ConversationID != "" {
		enc.AddTag("conversation_id", m.ConversationID)
	}
	enc.AddField("prompt_tokens", lineprotocol.FloatValue(float64(m.PromptTokens)))
	enc.AddField("completion_tokens", lineprotocol.FloatValue(float64(m.CompletionTokens)))
	enc.AddField("total_tokens", lineprotocol.FloatValue(float64(m.TotalTokens)))
	enc.AddField("prompt_tps", lineprotocol.FloatValue(m.PromptTPS))
	enc.AddField("generation_tps", lineprotocol.FloatValue(m.GenerationTPS))
	enc.AddField("prompt_ms", lineprotocol.FloatValue(m.PromptMS))
	enc.AddField("generation_ms", lineprotocol.FloatValue(m.GenerationMS))
	enc.AddField("duration_ms", lineprotocol.FloatValue(m.DurationMS))
	enc.AddField("input_len", lineprotocol.FloatValue(float64(m.InputLen)))
	enc.AddField("output_len", lineprotocol.FloatValue(float64(m.OutputLen)))
	enc.EndLine(m.Timestamp)
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

func (e *InfluxDBExporter) write(ctx context.Context, line []byte) error {
	url := fmt.Sprintf("%s/api/v2/write?org=%s&bucket=%s&precision=ns", e.cfg.URL, e.cfg.Org, e.cfg.Bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(line))
	if err != nil {
		return connectionError(err.Error())
	}
	req.Header.Set("Authorization", "Token "+e.cfg.Token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := e.client.Do(req)
	if err != nil {
		return connectionError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return authError(fmt.Sprintf("influxdb rejected token: status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return writeError(fmt.Sprintf("influxdb write failed: status %d: %s", resp.StatusCode, string(body)))
	}
	return nil
}
