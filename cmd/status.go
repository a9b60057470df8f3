package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iphands/llamafix-proxy/internal/process"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show proxy service status",
	Long:  `Display the current status of the llamafix-proxy service.`,
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) {
	procMgr := process.NewManager(baseDir)
	cfg := cfgMgr.Get()

	running := procMgr.IsRunning()
	pid := procMgr.ReadPID()
	refs := procMgr.ReadRef()

	color.Blue("Status for %s:", AppName)
	fmt.Printf("  %-15s: %v\n", "Running", running)
	fmt.Printf("  %-15s: %d\n", "PID", pid)

	if cfg != nil {
		fmt.Printf("  %-15s: %s\n", "Host", cfg.Server.Host)
		fmt.Printf("  %-15s: %d\n", "Port", cfg.Server.Port)
		fmt.Printf("  %-15s: %s\n", "Endpoint", fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port))
		fmt.Printf("  %-15s: %d\n", "Backends", len(cfg.Backend.Nodes()))
		fmt.Printf("  %-15s: %s\n", "Strategy", cfg.Backend.LoadBalancer.Strategy)
		fmt.Printf("  %-15s: %v\n", "Fixes enabled", cfg.Fixes.Enabled)
	}

	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.YAMLPath())
	fmt.Printf("  %-15s: %d\n", "References", refs)
	fmt.Printf("  %-15s: v%s\n", "Version", Version)
}
