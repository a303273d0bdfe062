package cli

import (
	"fmt"

	"github.com/Sternrassler/tweet-datasource/pkg/datasource"
	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Print the datasource metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), datasource.NewMetadata(version).JSON())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}
