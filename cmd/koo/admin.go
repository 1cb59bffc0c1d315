package main

import (
	"strconv"

	"koo/internal/initial"
	"koo/internal/modules/ai/domain/rag"
	"koo/pkg/util/myjwt"

	"github.com/spf13/cobra"
)

func newInitCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "create tables, vector collections and the ingest topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.newApp(cmd.Context(), initial.Options{EnsureSchema: true, EnableQueue: true})
			if err != nil {
				return err
			}
			defer app.Close()
			cmd.Printf("initialized %d domain(s) on %s\n", len(app.Domains), app.Conf.VectorConfig.Backend)
			return nil
		},
	}
}

func newQueryLogCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "querylog",
		Short: "inspect or delete query logs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "print a query log as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := opts.newApp(cmd.Context(), initial.Options{})
			if err != nil {
				return err
			}
			defer app.Close()
			res, err := app.QueryLogService.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}, &cobra.Command{
		Use:   "delete <id>",
		Short: "delete a query log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := opts.newApp(cmd.Context(), initial.Options{})
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.QueryLogService.Delete(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("query log %d deleted\n", id)
			return nil
		},
	})
	return cmd
}

func newDocumentCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "manage ingested documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "delete a document with its chunks and vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := opts.newApp(cmd.Context(), initial.Options{})
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.IngestService.DeleteDocument(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("document %d deleted\n", id)
			return nil
		},
	})
	return cmd
}

func newTokenCmd(opts *cliOptions) *cobra.Command {
	var subject, username string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "issue a bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := opts.loadConfig()
			if err != nil {
				return err
			}
			signer, err := myjwt.NewSigner(conf.JwtConfig.Key, conf.JwtConfig.Issuer, conf.JwtConfig.ExpireHours)
			if err != nil {
				return err
			}
			tok, err := signer.GenerateToken(subject, username)
			if err != nil {
				return err
			}
			cmd.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().StringVar(&username, "username", "cli", "token username")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, rag.Validationf("invalid id %q", s)
	}
	return id, nil
}

