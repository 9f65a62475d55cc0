package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grokcapture/internal/exif"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file.jpg]",
	Short: "Print the metadata embedded in a saved image",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	f, err := exif.Read(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Description: %s\n", f.Description)
	fmt.Fprintf(out, "Software:    %s\n", f.Software)
	fmt.Fprintf(out, "DateTime:    %s\n", f.DateTime)
	fmt.Fprintf(out, "Document:    %s\n", f.DocumentName)
	return nil
}
