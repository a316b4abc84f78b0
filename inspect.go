package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/qqmht/mht2html/mht"
	"github.com/qqmht/mht2html/stats"
)

// newInspectCmd builds the subcommand that lists an archive's parts
// without converting anything.
func newInspectCmd() *cobra.Command {
	var topN int

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "List the parts of an MHT archive and show content-type statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}

			parts, err := mht.Split(string(raw))
			if err != nil {
				return fmt.Errorf("split archive: %w", err)
			}

			rows := pterm.TableData{
				{"#", "Content-Type", "Content-Location", "Encoding", "Body bytes"},
			}
			typeCounts := make(map[string]int)

			for i, part := range parts {
				contentType := part.ContentType()
				if contentType == "" && part.Headers.Get("content-location") == "" {
					continue
				}
				typeCounts[contentType]++
				rows = append(rows, []string{
					strconv.Itoa(i),
					contentType,
					part.Headers.Get("content-location"),
					part.Headers.Get("content-transfer-encoding"),
					strconv.Itoa(len(part.Body)),
				})
			}

			if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
				return err
			}

			fmt.Printf("\nTop %d content types:\n", topN)
			stats.PrettyPrintTop(typeCounts, topN)

			return nil
		},
	}

	cmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top content types to display")
	return cmd
}
