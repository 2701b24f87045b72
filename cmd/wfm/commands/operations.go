package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fivetwenty-io/wfm-client/internal/client"
	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/spf13/cobra"
)

// GetOptions holds the flags of the get command.
type GetOptions struct {
	Filters   []string
	PageSize  int
	MaxPages  int
	AllPages  bool
	StartPage int
	Cursor    string
	OrderBy   string
	Fields    []string
}

// RequestOptions converts the flags into paging options.
func (o *GetOptions) RequestOptions() *wfm.RequestOptions {
	maxPages := o.MaxPages
	if o.AllPages {
		maxPages = 0
	}

	return &wfm.RequestOptions{
		PageSize:  o.PageSize,
		MaxPages:  maxPages,
		StartPage: o.StartPage,
		Cursor:    o.Cursor,
		OrderBy:   o.OrderBy,
		Fields:    o.Fields,
	}
}

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	opts := &GetOptions{}

	cmd := &cobra.Command{
		Use:   "get ENDPOINT",
		Short: "Read records from an endpoint",
		Long: `Read records from an endpoint, following pagination until the server reports
no more pages or --max-pages is reached.`,
		Example: `  wfm get employees --filter department_id=d-1 --page-size 100
  wfm get shifts --filter employee_id=e-1,e-2 --all -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := wfm.ParseFilter(opts.Filters)
			if err != nil {
				return err
			}

			return withClient(cmd.Context(), func(ctx context.Context, wfmClient *client.Client) error {
				records, err := wfmClient.Records(args[0])
				if err != nil {
					return err
				}

				results, err := records.Get(ctx, filter, opts.RequestOptions())
				if err != nil {
					return fmt.Errorf("failed to get %s: %w", args[0], err)
				}

				return outputReadResults(cmd.OutOrStdout(), results)
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter as key=value[,value] (repeatable)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", constants.StandardPageSize, "results per page")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", constants.MaxPages, "maximum number of pages to fetch")
	cmd.Flags().BoolVar(&opts.AllPages, "all", false, "fetch every page")
	cmd.Flags().IntVar(&opts.StartPage, "start-page", 0, "first page to fetch")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "resume from a cursor")
	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "sort order")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "fields to return")

	return cmd
}

func outputReadResults(w io.Writer, results *wfm.Results[wfm.Record]) error {
	return render(w, results, func(w io.Writer) error {
		err := renderRecordsTable(w, results.Items)
		if err != nil {
			return err
		}

		if page := results.Meta.Page; page != nil && page.HasMore {
			_, _ = fmt.Fprintf(w, "More results available (next: %s)\n", page.Next)
		}

		return nil
	})
}

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	return newWriteCommand(wfm.OperationCreate, "Create records on an endpoint",
		func(ctx context.Context, records wfm.ResourceClient[wfm.Record], items []wfm.Record) (*wfm.Results[wfm.Record], error) {
			return records.Create(ctx, items)
		})
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand() *cobra.Command {
	return newWriteCommand(wfm.OperationUpdate, "Update records on an endpoint",
		func(ctx context.Context, records wfm.ResourceClient[wfm.Record], items []wfm.Record) (*wfm.Results[wfm.Record], error) {
			return records.Update(ctx, items)
		})
}

type writeFunc func(ctx context.Context, records wfm.ResourceClient[wfm.Record], items []wfm.Record) (*wfm.Results[wfm.Record], error)

func newWriteCommand(kind wfm.OperationKind, short string, write writeFunc) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   string(kind) + " ENDPOINT",
		Short: short,
		Long: fmt.Sprintf(`%s records read from a JSON or YAML file holding an array of objects.
Large inputs are split into chunks the endpoint accepts; per-item failures
are reported without stopping the rest of the batch.`, columnTitle(string(kind))),
		Example: fmt.Sprintf("  wfm %s employees -f employees.yaml\n  cat shifts.json | wfm %s shifts -f -", kind, kind),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			items, err := parseRecords(data)
			if err != nil {
				return err
			}

			return withClient(cmd.Context(), func(ctx context.Context, wfmClient *client.Client) error {
				records, err := wfmClient.Records(args[0])
				if err != nil {
					return err
				}

				results, err := write(ctx, records, items)
				if err != nil {
					return fmt.Errorf("failed to %s %s: %w", kind, args[0], err)
				}

				return outputWriteResults(cmd.OutOrStdout(), results)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON or YAML input file, - for standard input")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete ENDPOINT ID...",
		Short:   "Delete records from an endpoint",
		Long:    "Delete records by id. Large id lists are split into chunks the endpoint accepts.",
		Example: "  wfm delete leave_requests lr-1 lr-2",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args[1:]
			if len(ids) == 0 {
				return ErrNoIDs
			}

			return withClient(cmd.Context(), func(ctx context.Context, wfmClient *client.Client) error {
				records, err := wfmClient.Records(args[0])
				if err != nil {
					return err
				}

				results, err := records.Delete(ctx, ids)
				if err != nil {
					return fmt.Errorf("failed to delete from %s: %w", args[0], err)
				}

				return outputWriteResults(cmd.OutOrStdout(), results)
			})
		},
	}

	return cmd
}

// outputWriteResults prints the results and fails when any item failed.
func outputWriteResults[T any](w io.Writer, results *wfm.Results[T]) error {
	failures := results.Failures()

	err := render(w, results, func(w io.Writer) error {
		_, _ = fmt.Fprintf(w, "%d succeeded, %d failed\n", results.Succeeded(), len(failures))

		if len(failures) == 0 {
			return nil
		}

		return renderFailuresTable(w, failures)
	})
	if err != nil {
		return err
	}

	if len(failures) > 0 {
		keys := make([]string, 0, len(failures))
		for _, failure := range failures {
			keys = append(keys, failure.Key)
		}

		return fmt.Errorf("%w: %s", ErrItemsFailed, strings.Join(keys, ", "))
	}

	return nil
}
