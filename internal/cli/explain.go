package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/taxdex/internal/app"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
	searchuc "github.com/kailas-cloud/taxdex/internal/usecase/search"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Result   string
	Taxonomy string
	Fields   []string
	Size     int
	Offset   int
}

// Explainer compiles a request into the engine request it would issue.
type Explainer interface {
	Explain(ctx context.Context, req *request.Request) (*searchuc.Plan, error)
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Print the Elasticsearch request a query compiles to",
		Long: `Compile a query against the live attribute schema and print the
index, execution mode and request bodies without running the search.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return fmt.Errorf("wire app: %w", err)
			}
			defer a.Close()
			return runExplain(cmd.Context(), a.Search, opts, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Result, "result", "r", request.DefaultCategory, "record category")
	cmd.Flags().StringVarP(&opts.Taxonomy, "taxonomy", "t", "", "taxonomy (default from config)")
	cmd.Flags().StringSliceVarP(&opts.Fields, "fields", "f", nil, "fields to return")
	cmd.Flags().IntVarP(&opts.Size, "size", "s", 0, "number of records")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip")

	return cmd
}

func runExplain(ctx context.Context, svc Explainer, opts *ExplainOptions, query string, w io.Writer) error {
	taxonomy := opts.Taxonomy
	if taxonomy == "" && opts.RootOptions != nil {
		taxonomy = opts.Config.Index.DefaultTaxonomy
	}
	req, err := request.New(request.Params{
		Category: opts.Result,
		Taxonomy: taxonomy,
		Query:    query,
		Fields:   opts.Fields,
		Size:     opts.Size,
		Offset:   opts.Offset,
	})
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	plan, err := svc.Explain(ctx, &req)
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}
