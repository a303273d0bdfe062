package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var executeCmd = &cobra.Command{
	Use:   "execute [file]",
	Short: "Run one JSON request envelope",
	Long: `Run one JSON request envelope and print the response envelope.

The request is read from file, or from stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			input []byte
			err   error
		)
		if len(args) == 1 {
			input, err = os.ReadFile(args[0])
		} else {
			input, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading request: %w", err)
		}

		svc, cleanup := buildService(cmd.Context(), cfg)
		defer cleanup()

		fmt.Fprintln(cmd.OutOrStdout(), svc.Execute(cmd.Context(), string(input)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(executeCmd)
}
