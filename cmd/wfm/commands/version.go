package commands

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// VersionInfo describes the CLI build.
type VersionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit"  yaml:"commit"`
	Built   string `json:"built"   yaml:"built"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display detailed version information about the WFM CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			versionInfo := VersionInfo{
				Version: version,
				Commit:  commit,
				Built:   date,
			}

			return render(cmd.OutOrStdout(), versionInfo, func(w io.Writer) error {
				table := tablewriter.NewWriter(w)
				table.Header("Property", "Value")
				_ = table.Append("Version", version)
				_ = table.Append("Commit", commit)
				_ = table.Append("Built", date)

				err := table.Render()
				if err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				return nil
			})
		},
	}
}
