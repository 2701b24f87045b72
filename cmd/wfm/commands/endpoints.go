package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/wfm-client/internal/registry"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewEndpointsCommand creates the endpoints command.
func NewEndpointsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "endpoints",
		Aliases: []string{"ep"},
		Short:   "List registered endpoints",
		Long:    "List every endpoint the client knows with its bulk, pagination and operation support",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Default()
			if err != nil {
				return err
			}

			descriptors := reg.List()

			infos := make([]wfm.EndpointInfo, 0, len(descriptors))
			for _, descriptor := range descriptors {
				infos = append(infos, descriptor.Info())
			}

			return render(cmd.OutOrStdout(), infos, func(w io.Writer) error {
				return renderEndpointsTable(w, infos)
			})
		},
	}
}

func renderEndpointsTable(w io.Writer, infos []wfm.EndpointInfo) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Base Path", "Entity", "Bulk", "Max Items", "Paginated", "Operations")

	for _, info := range infos {
		operations := make([]string, 0, len(info.Operations))
		for _, operation := range info.Operations {
			operations = append(operations, string(operation))
		}

		_ = table.Append(
			info.ID,
			info.BasePath,
			info.Entity,
			strconv.FormatBool(info.SupportsBulk),
			strconv.Itoa(info.MaxItemsPerCall),
			strconv.FormatBool(info.SupportsPagination),
			strings.Join(operations, ", "),
		)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
