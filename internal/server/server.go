// Package server hosts the proxy's HTTP listener: route wiring, graceful
// shutdown, and address-in-use diagnostics.
//
// The listener lifecycle (ListenAndServe in a goroutine, signal-triggered
// graceful shutdown, OS-tool-based address-in-use diagnostics) is general
// process/OS tooling, kept close to verbatim. Route wiring and Server's
// dependency set are built around the load-balanced backend pool, fix
// registry, and exporters this proxy's domain needs instead of a
// multi-provider registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/iphands/llamafix-proxy/internal/balancer"
	"github.com/iphands/llamafix-proxy/internal/config"
	"github.com/iphands/llamafix-proxy/internal/exporters"
	"github.com/iphands/llamafix-proxy/internal/fixes"
	"github.com/iphands/llamafix-proxy/internal/handlers"
	"github.com/iphands/llamafix-proxy/internal/middleware"
	"github.com/iphands/llamafix-proxy/internal/stats"
	"github.com/iphands/llamafix-proxy/internal/transport"
)

type Server struct {
	config       *config.Manager
	balancer     balancer.LoadBalancer
	fixRegistry  *fixes.Registry
	exporters    *exporters.Manager
	contextCache *stats.ContextCache
	logger       *slog.Logger
	httpServer   *http.Server
}

// New builds the Server: one transport client and balancer.Node per
// configured backend, the response-fix registry configured per
// cfg.Fixes.Modules, and an exporter manager populated from
// cfg.Exporters.
func New(configManager *config.Manager, logger *slog.Logger) (*Server, error) {
	cfg := configManager.Get()

	lb, err := buildBalancer(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: build balancer: %w", err)
	}

	fixRegistry := fixes.NewDefaultRegistry(logger)
	if cfg.Fixes.Enabled {
		modules := make(map[string]fixes.FixModuleConfig, len(cfg.Fixes.Modules))
		for name, m := range cfg.Fixes.Modules {
			modules[name] = fixes.FixModuleConfig{Enabled: m.Enabled, Options: m.Options}
		}
		fixRegistry.Configure(modules)
	} else {
		for _, f := range fixRegistry.ListFixers() {
			fixRegistry.SetEnabled(f.Name(), false)
		}
	}

	exporterManager := exporters.NewManager(logger)
	if cfg.Exporters.InfluxDB.Enabled {
		influx, err := exporters.NewInfluxDBExporter(exporters.InfluxDBConfigFromConfig(cfg.Exporters.InfluxDB))
		if err != nil {
			return nil, fmt.Errorf("server: configure influxdb exporter: %w", err)
		}
		exporterManager.Add(influx)
	}

	return &Server{
		config:       configManager,
		balancer:     lb,
		fixRegistry:  fixRegistry,
		exporters:    exporterManager,
		contextCache: stats.NewContextCache(),
		logger:       logger,
	}, nil
}

func buildBalancer(cfg *config.Config) (balancer.LoadBalancer, error) {
	nodeConfigs := cfg.Backend.Nodes()
	nodes := make([]*balancer.Node, 0, len(nodeConfigs))

	for _, nc := range nodeConfigs {
		client, err := transport.BuildClient(nc.Timeout(), nil)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", nc.URL(), err)
		}
		nodes = append(nodes, balancer.NewNode(nc.URL(), nc.Model, nc.APIKey, client))
	}

	return balancer.NewRoundRobinBalancer(nodes)
}

func (s *Server) Start() error {
	cfg := s.config.Get()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	mux := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	s.logger.Info("starting server", "address", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
			if strings.Contains(err.Error(), "address already in use") {
				s.handleAddressInUse(addr)
				os.Exit(1)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.logger.Info("server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("server exited")
	return nil
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	proxyHandler := handlers.NewProxyHandler(s.config, s.balancer, s.fixRegistry, s.exporters, s.contextCache, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)

	middlewareSet := middleware.NewMiddlewareSet(s.logger)

	mux.Handle("/health", middlewareSet.HealthChain().Handler(healthHandler))
	mux.Handle("/", middlewareSet.DefaultChain().Handler(proxyHandler))

	return mux
}

// handleAddressInUse attempts to find and display the PID using addr.
func (s *Server) handleAddressInUse(addr string) {
	s.logger.Error("address already in use", "address", addr)

	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		s.logger.Error("failed to parse address", "address", addr, "error", err)
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		s.logger.Error("invalid port number", "port", portStr, "error", err)
		return
	}

	pid := s.findProcessUsingPort(port)
	if pid > 0 {
		s.logger.Error("port is being used by another process",
			"port", port, "pid", pid, "process", s.getProcessInfo(pid))
	} else {
		s.logger.Error("could not determine which process is using the port", "port", port)
	}
}

func (s *Server) findProcessUsingPort(port int) int {
	switch runtime.GOOS {
	case "linux", "darwin":
		return s.findProcessUsingPortUnix(port)
	case "windows":
		return s.findProcessUsingPortWindows(port)
	default:
		s.logger.Warn("unsupported OS for port detection", "os", runtime.GOOS)
		return 0
	}
}

func (s *Server) findProcessUsingPortUnix(port int) int {
	if pid := s.tryNetstat(port); pid > 0 {
		return pid
	}
	if pid := s.tryLsof(port); pid > 0 {
		return pid
	}
	return s.trySS(port)
}

func (s *Server) tryNetstat(port int) int {
	output, err := exec.Command("netstat", "-tlnp").Output()
	if err != nil {
		return 0
	}
	return parsePIDFromListenLines(string(output), port, "LISTEN", func(line string) int {
		parts := strings.Fields(line)
		if len(parts) < 7 {
			return 0
		}
		pidStr := strings.Split(parts[6], "/")[0]
		if pidStr == "-" {
			return 0
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			return 0
		}
		return pid
	})
}

func (s *Server) tryLsof(port int) int {
	if port < 1 || port > 65535 {
		return 0
	}
	output, err := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", port)).Output()
	if err != nil {
		return 0
	}
	pidStr := strings.TrimSpace(string(output))
	if pidStr == "" {
		return 0
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0
	}
	return pid
}

func (s *Server) trySS(port int) int {
	output, err := exec.Command("ss", "-tlnp").Output()
	if err != nil {
		return 0
	}
	return parsePIDFromListenLines(string(output), port, "LISTEN", func(line string) int {
		idx := strings.Index(line, "pid=")
		if idx == -1 {
			return 0
		}
		rest := line[idx+4:]
		if comma := strings.Index(rest, ","); comma != -1 {
			rest = rest[:comma]
		}
		pid, err := strconv.Atoi(rest)
		if err != nil {
			return 0
		}
		return pid
	})
}

func (s *Server) findProcessUsingPortWindows(port int) int {
	output, err := exec.Command("netstat", "-ano").Output()
	if err != nil {
		return 0
	}
	return parsePIDFromListenLines(string(output), port, "LISTENING", func(line string) int {
		parts := strings.Fields(line)
		if len(parts) < 5 {
			return 0
		}
		pid, err := strconv.Atoi(parts[4])
		if err != nil {
			return 0
		}
		return pid
	})
}

// parsePIDFromListenLines scans output for a line mentioning both port and
// listenMarker, handing it to extract for PID parsing.
func parsePIDFromListenLines(output string, port int, listenMarker string, extract func(line string) int) int {
	portPattern := fmt.Sprintf(":%d ", port)
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, portPattern) && strings.Contains(line, listenMarker) {
			if pid := extract(line); pid > 0 {
				return pid
			}
		}
	}
	return 0
}

func (s *Server) getProcessInfo(pid int) string {
	switch runtime.GOOS {
	case "linux", "darwin":
		return s.getProcessInfoUnix(pid)
	case "windows":
		return s.getProcessInfoWindows(pid)
	default:
		return fmt.Sprintf("PID %d", pid)
	}
}

func (s *Server) getProcessInfoUnix(pid int) string {
	if pid < 1 || pid > 4194304 {
		return fmt.Sprintf("PID %d (invalid)", pid)
	}
	output, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "comm=").Output()
	if err == nil {
		if name := strings.TrimSpace(string(output)); name != "" {
			return fmt.Sprintf("%s (PID: %d)", name, pid)
		}
	}
	return fmt.Sprintf("PID: %d", pid)
}

func (s *Server) getProcessInfoWindows(pid int) string {
	output, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/FO", "CSV", "/NH").Output()
	if err == nil {
		lines := strings.Split(string(output), "\n")
		if len(lines) > 0 && lines[0] != "" {
			parts := strings.Split(lines[0], ",")
			if len(parts) >= 1 {
				return fmt.Sprintf("%s (PID: %d)", strings.Trim(parts[0], "\""), pid)
			}
		}
	}
	return fmt.Sprintf("PID: %d", pid)
}
