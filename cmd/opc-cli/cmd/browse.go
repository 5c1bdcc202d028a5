package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse <server>",
	Short: "Discover tag identifiers on a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := client.BrowseTags(context.Background(), args[0])
		if err != nil {
			return err
		}

		for _, tag := range result.Tags {
			fmt.Println(tag)
		}
		if result.Partial {
			fmt.Fprintf(cmd.ErrOrStderr(),
				"browse timed out; showing %d tags discovered before the deadline\n",
				len(result.Tags))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
