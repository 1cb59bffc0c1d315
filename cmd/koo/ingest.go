package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"koo/internal/initial"
	"koo/internal/modules/ai/application/dto/request"
	"koo/internal/modules/ai/domain/rag"

	"github.com/spf13/cobra"
)

// ingestFlags ingest 子命令的公共参数
type ingestFlags struct {
	domain   string
	sourceID string
	title    string
	content  string
	force    bool
	async    bool
}

func newIngestCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "ingest a document into the knowledge base",
	}
	cmd.AddCommand(
		newIngestKindCmd(opts, "text", rag.SourceRawText, "ingest inline text passed with --content"),
		newIngestKindCmd(opts, "file <path>", rag.SourceFile, "ingest a local markdown or text file"),
		newIngestKindCmd(opts, "notion <page-id>", rag.SourceNotion, "ingest a Notion page"),
		newIngestKindCmd(opts, "slack <channel-id>", rag.SourceSlack, "ingest the history of a Slack channel"),
	)
	return cmd
}

func newIngestKindCmd(opts *cliOptions, use string, kind rag.SourceType, short string) *cobra.Command {
	f := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(kind, args)
			if err != nil {
				return err
			}

			app, err := opts.newApp(cmd.Context(), initial.Options{EnableQueue: f.async})
			if err != nil {
				return err
			}
			defer app.Close()

			if f.async {
				res, err := app.AsyncIngestService.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			}
			res, err := app.IngestService.Ingest(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	if kind == rag.SourceRawText {
		cmd.Args = cobra.NoArgs
		cmd.Flags().StringVar(&f.sourceID, "source-id", "", "stable id of the text (required)")
		cmd.Flags().StringVar(&f.content, "content", "", "text to ingest (required)")
		_ = cmd.MarkFlagRequired("source-id")
		_ = cmd.MarkFlagRequired("content")
	} else {
		cmd.Args = cobra.ExactArgs(1)
	}
	cmd.Flags().StringVar(&f.domain, "domain", "", "target domain, CS or DEV (required)")
	cmd.Flags().StringVar(&f.title, "title", "", "document title")
	cmd.Flags().BoolVar(&f.force, "force", false, "re-index even when the content is unchanged")
	cmd.Flags().BoolVar(&f.async, "async", false, "publish to the ingest topic instead of indexing inline")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func (f *ingestFlags) request(kind rag.SourceType, args []string) (request.IngestRequest, error) {
	req := request.IngestRequest{
		Domain:     f.domain,
		SourceType: kind.String(),
		SourceID:   f.sourceID,
		Title:      f.title,
		Content:    f.content,
		Force:      f.force,
	}
	if len(args) == 1 {
		req.SourceID = strings.TrimSpace(args[0])
	}
	if kind == rag.SourceFile && req.SourceID != "" {
		abs, err := filepath.Abs(req.SourceID)
		if err != nil {
			return req, fmt.Errorf("resolve %s: %w", req.SourceID, err)
		}
		req.SourceID = abs
	}
	return req, nil
}
