package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/howto/internal/metrics"
	"github.com/FranksOps/howto/internal/report"
	"github.com/FranksOps/howto/internal/storage"
	"github.com/FranksOps/howto/pkg/howto"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "howto [flags] <question...>",
		Short: "Instant coding answers from the command line",
		Long: `howto searches a Q&A site for the question, reads the top-voted answer
of each result and prints its code, best answers first.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "))
		},
	}

	commonFlags(cmd.PersistentFlags())
	searchFlags(cmd.Flags())

	cmd.AddCommand(newHistoryCommand())
	return cmd
}

func runSearch(cmd *cobra.Command, query string) error {
	ctx := cmd.Context()

	fs := cmd.Flags()
	s, err := loadSettings(fs)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), s.LogLevel)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(s.Format)
	if err != nil {
		return err
	}
	if format == report.FormatHTML {
		return fmt.Errorf("format %q is only available for history", format)
	}

	if s.MetricsAddr != "" {
		srv, err := metrics.Start(s.MetricsAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(stopCtx)
		}()
	}

	opts := s.clientOptions(logger)

	store, err := openStore(ctx, s.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, howto.WithStore(store))
	}

	client, err := howto.New(opts...)
	if err != nil {
		return err
	}

	answers := client.Search(ctx, query)
	defer answers.Close()

	out := cmd.OutOrStdout()
	var printed int
	var lastErr error
	for position := 0; ; position++ {
		res, ok := answers.Next()
		if !ok {
			break
		}
		if res.Err != nil {
			lastErr = res.Err
			logger.Warn("answer failed", "query", query, "position", position, "err", res.Err)
		} else {
			printed++
		}
		if err := report.WriteResult(out, format, position, res); err != nil {
			return err
		}
		if s.Num > 0 && printed >= s.Num {
			break
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if printed == 0 {
		if lastErr != nil {
			return fmt.Errorf("no answer for %q: %w", query, lastErr)
		}
		logger.Info("no answers found", "query", query)
		fmt.Fprintf(cmd.ErrOrStderr(), "Sorry, couldn't find any help with that topic\n")
	}
	return nil
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [question...]",
		Short: "Show answers kept by --store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringP("format", "f", "text", "output format: text, json or html")
	cmd.Flags().Int("limit", 50, "maximum records shown (0 for all)")
	cmd.Flags().Duration("since", 0, "only records newer than this age")
	return cmd
}

func runHistory(cmd *cobra.Command, query string) error {
	ctx := cmd.Context()

	fs := cmd.Flags()
	s, err := loadSettings(fs)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), s.LogLevel)
	if err != nil {
		return err
	}
	if s.Store == "" {
		return errors.New("history needs --store (or HOWTO_STORE)")
	}

	format, err := report.ParseFormat(s.Format)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, s.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	filter := storage.Filter{}
	filter.Limit, _ = fs.GetInt("limit")
	if query != "" {
		filter.Query = howto.Normalize(query)
	}
	if age, _ := fs.GetDuration("since"); age > 0 {
		since := time.Now().Add(-age)
		filter.Since = &since
	}

	records, err := store.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("querying history: %w", err)
	}
	logger.Debug("history loaded", "records", len(records))

	return report.Write(cmd.OutOrStdout(), format, report.GenerateSummary(records))
}
