package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grokcapture/internal/store"
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Inspect and reset per-session sequence counters",
}

var counterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every session with its next sequence number",
	Args:  cobra.NoArgs,
	RunE:  runCounterList,
}

var counterShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show the next sequence number of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runCounterShow,
}

var counterResetCmd = &cobra.Command{
	Use:   "reset [session-id]",
	Short: "Reset the counter of a session to 1",
	Long: `Resets the counter of a session back to 1. Files already saved for the session
are not touched, so the next save may reuse an existing file name.`,
	Args: cobra.ExactArgs(1),
	RunE: runCounterReset,
}

func withCounters(fn func(*store.CounterStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ctx, cancel := offlineContext()
	defer cancel()
	counters := store.NewCounterStore(backend)
	if err := counters.Load(ctx); err != nil {
		return err
	}
	return fn(counters)
}

func runCounterList(cmd *cobra.Command, args []string) error {
	return withCounters(func(counters *store.CounterStore) error {
		ids := counters.SessionIDs()
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No sessions recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tNEXT")
		for _, id := range ids {
			fmt.Fprintf(tw, "%s\t%d\n", id, counters.Peek(id))
		}
		return tw.Flush()
	})
}

func runCounterShow(cmd *cobra.Command, args []string) error {
	return withCounters(func(counters *store.CounterStore) error {
		next := counters.Peek(args[0])
		if next == 0 {
			next = 1
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: next sequence %d\n", args[0], next)
		return nil
	})
}

func runCounterReset(cmd *cobra.Command, args []string) error {
	return withCounters(func(counters *store.CounterStore) error {
		ctx, cancel := offlineContext()
		defer cancel()
		if err := counters.Reset(ctx, args[0]); err != nil {
			return fmt.Errorf("reset counter: %w", err)
		}
		logger.Info("Counter reset", zap.String("session", args[0]))
		fmt.Fprintf(cmd.OutOrStdout(), "Counter reset for %s\n", args[0])
		return nil
	})
}
