package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <server> <tag> [tag...]",
	Short: "Read current values for one or more tags",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		values, err := client.ReadTagValues(context.Background(), args[0], args[1:])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TAG\tVALUE\tQUALITY\tTIMESTAMP")
		for _, v := range values {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.TagID, v.Value, v.Quality, v.Timestamp)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
}
