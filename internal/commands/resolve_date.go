package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crewsheet/internal/session"
)

func newResolveDateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "resolve-date <phrase>",
		Aliases: []string{"date"},
		Short:   "Resolve a date phrase to YYYY-MM-DD",
		Example: `  crewsheet resolve-date yesterday
  crewsheet resolve-date --base-date 2025-09-10 "last friday"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			iso, err := session.Resolver(cfg.Session, discardLogger()).Resolve(strings.Join(args, " "), "", "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), iso)
			return nil
		},
	}
}
