package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/nudge/internal/config"
	"github.com/kalambet/nudge/internal/learning"
	"github.com/kalambet/nudge/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show nudge server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get("http://" + cfg.Addr + "/api/health")
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				printStatus("Server", "running on %s", cfg.Addr)
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}

		printStatus("Store", "%s", cfg.Store)
		printStatus("Data dir", "%s", cfg.DataDir)
		printStatus("Retention", "%d days", cfg.RetentionDays)
		if len(cfg.Keys()) == 0 {
			printStatus("Auth", "open (development mode)")
		} else {
			printStatus("Auth", "%d API key(s)", len(cfg.Keys()))
		}
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete events and audit records past the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		pruner, ok := store.(storage.Pruner)
		if !ok {
			return fmt.Errorf("store %q does not support pruning", cfg.Store)
		}

		stats, err := pruner.Prune(context.Background())
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}
		printSuccess("Pruned %d events, %d audit records", stats.Events, stats.Actions)
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Recompute acceptance weights from the action audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetString("user")

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		trainer := learning.NewTrainer(store, cfg.DataDir)
		weights, err := trainer.Train(context.Background(), userID)
		if err != nil {
			return fmt.Errorf("training: %w", err)
		}

		printSuccess("Trained weights written to %s", trainer.Path())
		printStatus("Global accept rate", "%.2f", weights.GlobalAcceptRate)
		printStatus("Titles", "%d", len(weights.PerTitle))
		if out, err := json.MarshalIndent(weights.PerTitle, "", "  "); err == nil && len(weights.PerTitle) > 0 {
			fmt.Println(string(out))
		}
		return nil
	},
}

func init() {
	trainCmd.Flags().String("user", "", "train on a single user's history (default: all users)")
}
