package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/nao1215/bannerscan/internal/protocol"
	"github.com/nao1215/bannerscan/internal/report"
	"github.com/spf13/cobra"
)

// NewProtocolsCmd creates the protocols command.
func NewProtocolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "protocols",
		Short: "List supported probes and their default ports",
		Long: `List every probe bannerscan can run, the ports it is selected for by
default, and whether the service speaks first.

Server-first probes capture a banner in passive mode. Client-first probes
only write in active mode; in passive mode they wait for unsolicited data.

A probe can be forced with --protocol or bound to more ports in the
ports: section of the configuration file.`,
		Args: cobra.NoArgs,
		RunE: runProtocolsCmd,
	}
}

// runProtocolsCmd executes the protocols command.
func runProtocolsCmd(cmd *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDISPLAY\tPORTS\tSPEAKS FIRST")
	for _, p := range protocol.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.String(), report.DisplayName(p.String()), formatPorts(p.DefaultPorts()), speaksFirst(p))
	}
	return tw.Flush()
}

// formatPorts renders a port list, or "-" when empty.
func formatPorts(ports []uint16) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, len(ports))
	for i, port := range ports {
		parts[i] = strconv.Itoa(int(port))
	}
	return strings.Join(parts, ",")
}

func speaksFirst(p protocol.Protocol) string {
	if p == protocol.GenericRaw {
		return "-"
	}
	if p.ServerFirst() {
		return "server"
	}
	return "client"
}
