package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/medrag/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load <file>...",
	Short: "Index labels from local files",
	Long: `Indexes labels without calling openFDA. Accepts openFDA bulk
downloads (drug-label-*.json or .zip) and label documents (.txt, .md,
.html, .pdf, .docx).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		if !pipeline.SupportedFile(path) {
			return fmt.Errorf("unsupported file type: %s", path)
		}
	}

	a, err := openApp(logger())
	if err != nil {
		return err
	}
	defer a.Close()

	var labels, chunks int
	var failed []error
	for _, path := range args {
		loaded, err := pipeline.LoadLabelFile(path)
		if err != nil {
			failed = append(failed, err)
			cmd.PrintErrf("%s: %v\n", path, err)
			continue
		}
		for _, l := range loaded {
			n, err := a.Service.IngestLabel(cmd.Context(), l)
			if err != nil {
				failed = append(failed, fmt.Errorf("%s: %s: %w", path, l.DisplayName(), err))
				continue
			}
			if n > 0 {
				labels++
				chunks += n
			}
		}
		cmd.Printf("%s: %d labels read\n", path, len(loaded))
	}
	cmd.Printf("Indexed %d labels (%d chunks)\n", labels, chunks)
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}
