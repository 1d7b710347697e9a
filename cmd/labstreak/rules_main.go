package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labstreak/labstreak/internal/rules"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the built-in diagnostic rules and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, r := range rules.Builtin() {
				fmt.Fprintf(w, "%s\n", r.Name())
				fmt.Fprintf(w, "  channels: %s\n", strings.Join(r.Channels(), ", "))
				for _, p := range r.Params() {
					unit := p.Unit
					if unit == "" {
						unit = "-"
					}
					fmt.Fprintf(w, "  param %-16s unit=%-8s range=[%g, %g] default=%g\n",
						p.Name, unit, p.Min, p.Max, p.Default)
				}
			}
			return nil
		},
	}
}
