package commands

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fivetwenty-io/wfm-client/internal/client"
	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewUploadCommand creates the upload command.
func NewUploadCommand() *cobra.Command {
	var (
		employeeID  string
		contentType string
		fields      []string
	)

	cmd := &cobra.Command{
		Use:     "upload FILE",
		Short:   "Upload a document",
		Long:    "Upload a file to the documents endpoint, optionally attaching it to an employee",
		Example: "  wfm upload contract.pdf --employee-id e-1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			content, err := readInput(path, cmd.InOrStdin())
			if err != nil {
				return err
			}

			formFields, err := parseFields(fields)
			if err != nil {
				return err
			}

			if employeeID != "" {
				formFields["employee_id"] = employeeID
			}

			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(path))
			}

			req := &wfm.UploadRequest{
				Filename:    filepath.Base(path),
				ContentType: contentType,
				Content:     content,
				Fields:      formFields,
			}

			return withClient(cmd.Context(), func(ctx context.Context, wfmClient *client.Client) error {
				results, err := wfmClient.Documents().Upload(ctx, req)
				if err != nil {
					return fmt.Errorf("failed to upload %s: %w", path, err)
				}

				return render(cmd.OutOrStdout(), results, func(w io.Writer) error {
					return renderDocumentsTable(w, results.Items)
				})
			})
		},
	}

	cmd.Flags().StringVar(&employeeID, "employee-id", "", "employee the document belongs to")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (guessed from the file extension when omitted)")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "additional form field as key=value (repeatable)")

	return cmd
}

func renderDocumentsTable(w io.Writer, documents []wfm.Document) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Filename", "Content Type", "Size", "Employee")

	for _, document := range documents {
		_ = table.Append(document.ID, document.Filename, document.ContentType,
			strconv.FormatInt(document.Size, 10), document.EmployeeID)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// NewDownloadCommand creates the download command.
func NewDownloadCommand() *cobra.Command {
	var (
		file   string
		params []string
	)

	cmd := &cobra.Command{
		Use:     "download ID",
		Short:   "Download a document",
		Long:    "Download the content of a document to a file, or to standard output",
		Example: "  wfm download doc-1 -f contract.pdf",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := wfm.ParseFilter(params)
			if err != nil {
				return err
			}

			if file != "" {
				err = validateFilePath(file)
				if err != nil {
					return err
				}
			}

			return withClient(cmd.Context(), func(ctx context.Context, wfmClient *client.Client) error {
				download, err := wfmClient.Documents().Download(ctx, &wfm.DownloadRequest{ID: args[0], Query: query})
				if err != nil {
					return fmt.Errorf("failed to download %s: %w", args[0], err)
				}

				if file == "" {
					_, err = cmd.OutOrStdout().Write(download.Content)
					if err != nil {
						return fmt.Errorf("writing content: %w", err)
					}

					return nil
				}

				err = os.WriteFile(file, download.Content, constants.DownloadFilePerm)
				if err != nil {
					return fmt.Errorf("failed to write %s: %w", file, err)
				}

				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d bytes (%s) to %s\n", len(download.Content), download.ContentType, file)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "write the content to this file instead of standard output")
	cmd.Flags().StringArrayVar(&params, "param", nil, "query parameter as key=value (repeatable)")

	return cmd
}
