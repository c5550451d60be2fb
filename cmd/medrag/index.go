package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var resetConfirmed bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect or reset the semantic index",
}

var indexCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of indexed chunks",
	Args:  cobra.NoArgs,
	RunE:  runIndexCount,
}

var indexResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every indexed chunk",
	Args:  cobra.NoArgs,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if !resetConfirmed {
			return errors.New("refusing to reset the index without --yes")
		}
		return nil
	},
	RunE: runIndexReset,
}

func init() {
	indexResetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm deleting all entries")
	indexCmd.AddCommand(indexCountCmd, indexResetCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexCount(cmd *cobra.Command, _ []string) error {
	a, err := openApp(logger())
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Service.IndexCount(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Println(n)
	return nil
}

func runIndexReset(cmd *cobra.Command, _ []string) error {
	a, err := openApp(logger())
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Service.ResetIndex(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Removed %d entries\n", n)
	return nil
}
