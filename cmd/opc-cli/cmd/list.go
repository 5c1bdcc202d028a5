package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available OPC DA servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		servers, err := client.ListServers(context.Background())
		if err != nil {
			return err
		}

		if len(servers) == 0 {
			fmt.Println("No OPC DA servers found.")
			return nil
		}
		for _, s := range servers {
			fmt.Println(s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
