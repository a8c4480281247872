package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tracertea/certidao/internal/registry"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "List the CNPJs and company names read from an input file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ids, reg, err := registry.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n", args[0])
	fmt.Fprintf(out, "CNPJs: %d\n\n", len(ids))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCNPJ\tEMPRESA\tARQUIVO")
	for i, id := range ids {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s.pdf\n", i+1, id, registry.Name(reg, id), registry.FileName(reg, id))
	}
	return tw.Flush()
}
