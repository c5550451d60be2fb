package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <drug> <dosage text>",
	Short: "Extract a reminder schedule from dosage instructions",
	Example: `  medrag schedule Metformin "Take 500 mg twice daily with meals"`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := openApp(logger())
	if err != nil {
		return err
	}
	defer a.Close()

	sched := a.Service.GenerateSchedule(cmd.Context(), args[0], strings.Join(args[1:], " "))
	data, err := json.MarshalIndent(sched, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
