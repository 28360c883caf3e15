package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/jsonfix"
)

var recoverWindow int

var recoverCmd = &cobra.Command{
	Use:   "recover FILE|-",
	Short: "Recover JSON from a saved LLM response",
	Long: `Runs extraction and normalization over a saved model response and prints
the recovered JSON. On failure the diagnostic, with the failure offset and the
text around it, is printed to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().IntVar(&recoverWindow, "window", 40, "bytes of context shown either side of a failure")
	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	var (
		raw []byte
		err error
	)
	if args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		logger.Error("failed to read response", "error", err)
		os.Exit(1)
	}

	rec, err := jsonfix.Recover(string(raw))
	if err != nil {
		var recErr *jsonfix.RecoveryError
		if errors.As(err, &recErr) {
			fmt.Fprintf(os.Stderr, "recovery failed at offset %d: %s\n", recErr.Offset, recErr.Message)
			fmt.Fprintf(os.Stderr, "near: %q\n", recErr.Window(recoverWindow))
		} else {
			fmt.Fprintf(os.Stderr, "extraction failed: %v\n", err)
		}
		os.Exit(1)
	}

	logger.Debug("recovered", "repaired", rec.Repaired, "candidate_bytes", len(rec.Candidate))
	out, err := json.MarshalIndent(rec.Value, "", "  ")
	if err != nil {
		logger.Error("failed to encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	return nil
}
