package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	capturesSession string
	capturesLimit   int
)

var capturesCmd = &cobra.Command{
	Use:   "captures",
	Short: "List saved captures, newest first",
	Args:  cobra.NoArgs,
	RunE:  runCaptures,
}

func init() {
	capturesCmd.Flags().StringVar(&capturesSession, "session", "", "Only show captures of this session")
	capturesCmd.Flags().IntVar(&capturesLimit, "limit", 20, "Maximum number of captures")
}

func runCaptures(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("capture history needs a sqlite store")
	}
	defer db.Close()

	ctx, cancel := offlineContext()
	defer cancel()
	captures, err := db.ListCaptures(ctx, capturesSession, capturesLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(captures) == 0 {
		fmt.Fprintln(out, "No captures recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SAVED\tFILE\tATTEMPTS\tPROMPT")
	for _, c := range captures {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.SavedAt.Local().Format(time.DateTime), c.Filename, c.Attempts, truncate(c.Prompt, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
