package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharetube/whiteboard/pkg/discovery"
)

func discoverCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find whiteboard servers on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			found := 0

			err := discovery.Browse(cmd.Context(), wait, func(e discovery.Entry) {
				found++
				fmt.Fprintf(out, "%s\thttp://%s\t%s\n", e.Instance, e.Addr, strings.Join(e.Info, " "))
			})
			if err != nil {
				return err
			}

			if found == 0 {
				fmt.Fprintln(out, "no servers found")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "How long to listen for answers")

	return cmd
}
