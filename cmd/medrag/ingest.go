package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/medrag/internal/label"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <drug>...",
	Short: "Fetch drug labels from openFDA and index them",
	Long: `Fetches the first openFDA label matching each drug name, by brand
or generic name, and indexes its warnings, dosage, adverse reaction and
indication sections. Re-ingesting a drug appends another copy unless
replace_on_reingest is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openApp(logger())
	if err != nil {
		return err
	}
	defer a.Close()

	var failed []error
	for _, name := range args {
		n, err := a.Service.IngestDrug(cmd.Context(), name)
		switch {
		case err != nil && !errors.Is(err, label.ErrNotFound):
			failed = append(failed, err)
			cmd.PrintErrf("%s: %v\n", name, err)
		case err != nil || n == 0:
			cmd.Printf("%s: Drug not found or failed to ingest\n", name)
		default:
			cmd.Printf("Successfully ingested data for %s (%d chunks)\n", name, n)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d drugs failed: %w", len(failed), len(args), errors.Join(failed...))
	}
	return nil
}
