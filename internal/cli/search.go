package cli

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/tweet-datasource/pkg/datasource"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/spf13/cobra"
)

var searchParams query.Params

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Collect tweets matching a query",
	Long: `Collect tweets matching a query and print one line per tweet:

  <timestamp> : <author> : <text>

Arguments are joined with spaces to form the query text.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup := buildService(cmd.Context(), cfg)
		defer cleanup()

		p := searchParams
		p.Query = strings.Join(args, " ")

		result, err := svc.Search(cmd.Context(), p)
		if err != nil {
			return fmt.Errorf("%s", datasource.Message(err))
		}

		fmt.Fprint(cmd.OutOrStdout(), datasource.Render(result.Items))
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchParams.Count, "count", "n", 0, "number of tweets to collect (default 15)")
	f.StringVar(&searchParams.Type, "type", "", "result type: recent, popular or mixed")
	f.StringVar(&searchParams.Lang, "lang", "", "ISO 639-1 language code")
	f.StringVar(&searchParams.Since, "since", "", "earliest date, YYYY-MM-DD")
	f.StringVar(&searchParams.Until, "until", "", "latest date, YYYY-MM-DD")
	f.StringVar(&searchParams.Address, "address", "", "restrict to tweets near this address")
	f.Float64Var(&searchParams.Radius, "radius", 0, "radius around the address (default 10)")
	f.StringVar(&searchParams.Unit, "unit", "", "radius unit: km or mi")
	rootCmd.AddCommand(searchCmd)
}
