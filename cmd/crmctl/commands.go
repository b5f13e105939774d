package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"chatbot-crm/internal/app"
	"chatbot-crm/internal/search"
	"chatbot-crm/internal/store"
)

type buildFunc func() (app.Deps, error)

type options struct {
	build  buildFunc
	format string
}

func newRootCmd(build buildFunc) *cobra.Command {
	opts := &options{build: build}
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Administer the CRM document knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "table" && opts.format != "json" {
				return fmt.Errorf("--format must be table or json, got %q", opts.format)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.format, "format", "table", "Output format: table or json")

	root.AddCommand(
		newProcessCmd(opts),
		newProcessAllCmd(opts),
		newSearchCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

func newProcessCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "process <document-id>",
		Short: "Extract and embed one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document id %q: %w", args[0], err)
			}
			deps, err := opts.build()
			if err != nil {
				return err
			}
			defer deps.Close()

			out, err := deps.Pipeline.ProcessByID(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("document %s not found", id)
			}
			if err != nil {
				return err
			}
			if opts.format == "json" {
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else if out.OK() {
				fmt.Fprintf(cmd.OutOrStdout(), "processed %s (%s)\n", out.Filename, out.DocumentID)
			}
			if !out.OK() {
				return errors.New(out.Message())
			}
			return nil
		},
	}
}

func newProcessAllCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "process-all",
		Short: "Process every pending document",
		Long: `Process every document that has not been processed yet.

Each document is handled independently; failures are listed and the
batch continues. BATCH_CONCURRENCY bounds parallel work.

Examples:
  crmctl process-all
  crmctl process-all --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.build()
			if err != nil {
				return err
			}
			defer deps.Close()

			summary, err := deps.Pipeline.ProcessAll(cmd.Context())
			if err != nil && summary.Total == 0 {
				return err
			}
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "total: %d  processed: %d  failed: %d\n", summary.Total, summary.Processed, summary.Failed)
			for _, msg := range summary.Errors {
				fmt.Fprintf(w, "  %s\n", msg)
			}
			return err
		},
	}
}

func newSearchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Rank processed documents against a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.build()
			if err != nil {
				return err
			}
			defer deps.Close()

			results, err := deps.Search.Search(cmd.Context(), args[0])
			if errors.Is(err, search.ErrQueryNotEmbeddable) {
				return fmt.Errorf("query %q is too short or could not be embedded", args[0])
			}
			if err != nil {
				return err
			}
			if opts.format == "json" {
				rows := make([]map[string]any, 0, len(results))
				for _, r := range results {
					rows = append(rows, map[string]any{
						"document_id": r.Document.ID,
						"filename":    r.Document.Filename,
						"similarity":  r.Similarity,
						"excerpt":     r.Excerpt,
					})
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No documents found for query: %s\n", args[0])
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "SCORE\tFILENAME\tEXCERPT\n")
			for _, r := range results {
				fmt.Fprintf(w, "%.3f\t%s\t%s\n", r.Similarity, r.Document.Filename, oneLine(r.Excerpt, 60))
			}
			return w.Flush()
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.build()
			if err != nil {
				return err
			}
			defer deps.Close()

			failedAfter := deps.Config.FailedAfter
			if failedAfter <= 0 {
				failedAfter = store.DefaultFailedAfter
			}
			stats, err := deps.Store.Stats(cmd.Context(), time.Now().Add(-failedAfter))
			if err != nil {
				return err
			}
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"total":     stats.Total,
					"processed": stats.Processed,
					"pending":   stats.Pending,
					"failed":    stats.Failed,
					"by_type":   stats.ByType,
				})
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "total\t%d\n", stats.Total)
			fmt.Fprintf(w, "processed\t%d\n", stats.Processed)
			fmt.Fprintf(w, "pending\t%d\n", stats.Pending)
			fmt.Fprintf(w, "failed\t%d\n", stats.Failed)
			for _, t := range store.DocumentTypes {
				if n := stats.ByType[t]; n > 0 {
					fmt.Fprintf(w, "  %s\t%d\n", t, n)
				}
			}
			return w.Flush()
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// oneLine flattens s and cuts it to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
