package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sheetdrip/internal/queue"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print queue statistics from the stored snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, err := queue.Open(cfg.Storage.Driver, cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer repo.Close()

		ctx := context.Background()
		items, err := repo.LoadQueue(ctx)
		if err != nil {
			return err
		}
		ac, found, err := repo.LoadConfig(ctx)
		if err != nil {
			return err
		}
		if !found {
			ac = cfg.Automator
		}
		store := queue.NewStore()
		store.Load(items)
		st := store.Stats(len(ac.GuestbookURLs))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "webhook\t%s\n", ac.WebhookURL)
		fmt.Fprintf(w, "sheet\t%s\n", ac.TargetSheet())
		fmt.Fprintf(w, "batch size\t%d\n", ac.BatchSize)
		fmt.Fprintf(w, "interval\t%vm\n", ac.IntervalMinutes)
		fmt.Fprintf(w, "total\t%d\n", st.Total)
		fmt.Fprintf(w, "pending\t%d\n", st.Pending)
		fmt.Fprintf(w, "processing\t%d\n", st.Processing)
		fmt.Fprintf(w, "completed\t%d\n", st.Completed)
		fmt.Fprintf(w, "failed\t%d\n", st.Failed)
		fmt.Fprintf(w, "progress\t%.0f%%\n", st.Progress)
		return w.Flush()
	},
}
