package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"codexbridge/internal/providers"
)

type ProvidersCommand struct {
	wiring commandWiring
}

func NewProvidersCommand(wiring commandWiring) *ProvidersCommand {
	return &ProvidersCommand{wiring: wiring}
}

func (c *ProvidersCommand) Run(args []string) error {
	return runCommand(c.Command(), c.wiring, args)
}

func (c *ProvidersCommand) Command() *cobra.Command {
	var settings settingsFlags
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List known app-server providers and the command each resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := settings.load()
			if err != nil {
				return err
			}
			printProviders(c.wiring.stdout, providers.All(), cfg.Provider.CodexPath)
			return nil
		},
	}
	settings.register(cmd)
	return cmd
}

func printProviders(output io.Writer, defs []providers.Definition, configured string) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tLABEL\tRUNTIME\tCOMMAND\tCAPABILITIES")
	for _, def := range defs {
		command, err := providers.ResolveCommand(def, configured)
		if err != nil {
			command = "unresolved: " + err.Error()
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", def.Name, def.Label, def.Runtime, command, capabilityLabels(def.Capabilities))
	}
	_ = writer.Flush()
}

func capabilityLabels(caps providers.Capabilities) string {
	var labels []string
	if caps.SupportsApprovals {
		labels = append(labels, "approvals")
	}
	if caps.SupportsInterrupt {
		labels = append(labels, "interrupt")
	}
	if caps.SupportsReasoning {
		labels = append(labels, "reasoning")
	}
	if caps.ReportsUsage {
		labels = append(labels, "usage")
	}
	if len(labels) == 0 {
		return "-"
	}
	return strings.Join(labels, ",")
}
