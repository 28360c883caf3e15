package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/store"
)

var (
	historyLimit   int
	historySubject string
	historyPrune   time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent LLM calls and token totals",
	Long:  "Reads the SQLite usage log and prints the most recent calls followed by token totals.",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of recent calls to show")
	historyCmd.Flags().StringVar(&historySubject, "subject", "", "restrict totals to one subject")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "delete calls older than this (e.g. 720h) before printing")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.UsageLog.SQLitePath == "" {
		fmt.Fprintln(os.Stderr, "usage_log.sqlite_path is disabled in config")
		os.Exit(1)
	}

	s, err := store.NewSQLiteStore(cfg.UsageLog.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open usage log: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if historyPrune > 0 {
		n, err := s.Prune(historyPrune)
		if err != nil {
			fmt.Fprintf(os.Stderr, "prune failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Pruned %d calls older than %s\n\n", n, historyPrune)
	}

	recs, err := s.Recent(historyLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read usage log: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-17s %-22s %-10s %-7s %8s %8s %s\n", "Time", "Model", "Stage", "Status", "Tokens", "Secs", "Subject")
	fmt.Println(strings.Repeat("─", 92))
	for _, r := range recs {
		fmt.Printf("%-17s %-22s %-10s %-7s %8d %8.1f %s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			truncateCell(r.Model, 22),
			r.Stage,
			r.Status,
			r.Usage.TotalTokens,
			r.Duration.Seconds(),
			r.Params.Subject,
		)
	}

	t, err := s.Totals(historySubject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sum usage log: %v\n", err)
		os.Exit(1)
	}
	scope := "all subjects"
	if historySubject != "" {
		scope = historySubject
	}
	fmt.Printf("\nTotal (%s): %d calls (%d failed), %d tokens (%d prompt, %d completion), %s\n",
		scope, t.Calls, t.Failed, t.Usage.TotalTokens, t.Usage.PromptTokens, t.Usage.CompletionTokens,
		t.Duration.Round(time.Second))
	return nil
}

func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
