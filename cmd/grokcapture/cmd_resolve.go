package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"grokcapture/internal/prompt"
)

var resolveSrcPrefix string

var resolveCmd = &cobra.Command{
	Use:   "resolve [transcript.html]",
	Short: "Print the prompt each image of a saved conversation would be stored with",
	Long: `Resolve reads a conversation saved as HTML and runs the prompt search over every
image whose src starts with --src-prefix, printing one line per image.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveSrcPrefix, "src-prefix", "blob:", "Only resolve images whose src has this prefix (empty for all)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	images, err := prompt.ImagesInHTML(f, resolveSrcPrefix)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if len(images) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No images found")
		return nil
	}

	r := &prompt.Resolver{MaxDepth: cfg.Browser.MaxDepth, MinFallbackLen: prompt.DefaultMinFallbackLen}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tPROMPT")
	for _, img := range images {
		fmt.Fprintf(tw, "%s\t%s\n", truncate(img.Ref, 48), r.Resolve(img.Container))
	}
	return tw.Flush()
}
