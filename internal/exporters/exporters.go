// Package exporters ships collected request metrics to external
// time-series backends.
//
// Grounded on original_source/llama-proxy/src/exporters/mod.rs: the
// MetricsExporter trait and ExporterManager fan-out helper.
package exporters

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iphands/llamafix-proxy/internal/stats"
)

// ExportError classifies why an export attempt failed, mirroring the
// original's ExportError enum variants.
type ExportError struct {
	Kind    string
	Message string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func connectionError(msg string) error { return &ExportError{Kind: "connection error", Message: msg} }
func authError(msg string) error       { return &ExportError{Kind: "authentication error", Message: msg} }
func writeError(msg string) error      { return &ExportError{Kind: "write error", Message: msg} }
func configError(msg string) error     { return &ExportError{Kind: "configuration error", Message: msg} }

// MetricsExporter ships one RequestMetrics sample to an external backend.
type MetricsExporter interface {
	Export(ctx context.Context, m stats.RequestMetrics) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Name() string
}

// Manager fans a metrics sample out to every registered exporter,
// logging (never propagating) per-exporter failures so one broken
// exporter never blocks the others or the request path.
type Manager struct {
	mu        sync.RWMutex
	exporters []MetricsExporter
	logger    *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

func (m *Manager) Add(exporter MetricsExporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exporters = append(m.exporters, exporter)
}

func (m *Manager) ExportAll(ctx context.Context, metrics stats.RequestMetrics) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, exporter := range m.exporters {
		if err := exporter.Export(ctx, metrics); err != nil {
			m.logger.Warn("failed to export metrics", "exporter", exporter.Name(), "error", err)
			continue
		}
		m.logger.Debug("metrics exported successfully", "exporter", exporter.Name())
	}
}

func (m *Manager) FlushAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, exporter := range m.exporters {
		if err := exporter.Flush(ctx); err != nil {
			m.logger.Warn("failed to flush exporter", "exporter", exporter.Name(), "error", err)
		}
	}
}

func (m *Manager) ShutdownAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, exporter := range m.exporters {
		if err := exporter.Shutdown(ctx); err != nil {
			m.logger.Warn("failed to shutdown exporter", "exporter", exporter.Name(), "error", err)
		}
	}
}
