package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write <server> <tag> <value>",
	Short: "Write a value to a tag",
	Long: `Write a value to a tag. The value is coerced from its textual form:
integers and floats become numeric writes, "true"/"false" become boolean
writes, anything else is written as a string.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := client.WriteTagValue(context.Background(), args[0], args[1], args[2])
		if err != nil {
			return err
		}

		if !result.Success {
			return fmt.Errorf("write %s failed: %s", result.TagID, result.Error)
		}
		fmt.Printf("Wrote %s = %s\n", args[1], args[2])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
}
