package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"koo/internal/initial"
	"koo/internal/modules/ai/application/dto/request"
	"koo/internal/modules/ai/application/dto/respond"
	"koo/pkg/util"

	"github.com/spf13/cobra"
)

const previewRunes = 60

func newAskCmd(opts *cliOptions) *cobra.Command {
	var (
		topK        int
		domains     []string
		sourceTypes []string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "answer a question from the indexed knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd.Context(), initial.Options{})
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.AskService.Ask(cmd.Context(), request.AskRequest{
				Question:    args[0],
				TopK:        topK,
				Domains:     domains,
				SourceTypes: sourceTypes,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printAsk(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "hits per domain (default from ragConfig.topK)")
	cmd.Flags().StringSliceVar(&domains, "domain", nil, "restrict to domains, e.g. --domain CS")
	cmd.Flags().StringSliceVar(&sourceTypes, "source-type", nil, "restrict to source types, e.g. --source-type NOTION")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func printAsk(w io.Writer, res *respond.AskRespond) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tDOMAIN\tCHUNK\tSCORE\tTEXT")
	for _, h := range res.Hits {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.4f\t%s\n", h.Rank, h.Domain, h.ChunkID, h.Score, util.TruncateRunes(util.OneLine(h.Text), previewRunes))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n\nconfidence=%.2f query_log_id=%d trace_id=%s\n",
		res.Answer, res.Confidence, res.QueryLogID, res.TraceID)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
