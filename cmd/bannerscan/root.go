package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for bannerscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bannerscan",
		Short: "Concurrent TCP banner grabber",
		Long: `bannerscan connects to TCP services and records the banner each one presents.

Connections are bounded by a concurrency gate and a rate limiter, and every
connection runs under connect, read and overall deadlines. In passive mode
bannerscan only listens. In active mode it speaks the first step of the
service's protocol (SMTP EHLO, MySQL handshake, MongoDB isMaster and so on)
to collect version and capability details.

Scans go direct by default. Use --proxy for a SOCKS5 proxy or --tor to
start an embedded Tor daemon.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewProtocolsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
