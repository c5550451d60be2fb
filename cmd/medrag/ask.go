package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from ingested label text",
	Long: `Answers using only the most relevant indexed label chunks. When the
labels do not cover the question the answer is "Not found in label".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp(logger())
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.Service.Ask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	cmd.Println(answer)
	return nil
}
