package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sheetdrip/internal/queue"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Append URLs (one per line) to the stored queue",
	Long: `Append URLs from a file, or stdin when no file is given, to the persisted
queue. Run it while the server is stopped: the server keeps its own copy of the
queue in memory and overwrites the snapshot on its next change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogger(cfg.Logging)

	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read urls: %w", err)
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
	store := queue.NewStore()
	store.Load(items)
	n := store.Append(queue.ParseURLList(string(data)))
	if n > 0 {
		if err := repo.SaveQueue(ctx, store.Snapshot()); err != nil {
			return err
		}
	}
	fmt.Printf("imported %d new URLs (%d total)\n", n, store.Len())
	return nil
}
