package main

import (
	"fmt"

	"github.com/openmined/assetsync/internal/router"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newResolveCmd())
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>...",
		Short: "Show which directory serves each asset path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				full, loc, err := c.Resolve(cmd.Context(), path)
				if err != nil {
					fmt.Fprintf(out, "%s\t%s\t%s\n", red.Render("error"), path, err)
					continue
				}
				if loc == router.None {
					fmt.Fprintf(out, "%s\t%s\t%s\n", yellow.Render(loc.String()), path, gray.Render("(download required)"))
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", green.Render(loc.String()), path, full)
			}
			return nil
		},
	}
}
