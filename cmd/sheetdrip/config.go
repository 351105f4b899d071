package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sheetdrip/internal/scheduler"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("--config is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", cfgFile)
		if cfg.AutoStart.Cron != "" {
			next, err := scheduler.NextRunTime(cfg.AutoStart.Cron, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("next auto-start: %s\n", next.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
