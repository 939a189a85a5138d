/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/skald_overlay/internal/auth"
	"github.com/friendsincode/skald_overlay/internal/db"
	"github.com/friendsincode/skald_overlay/internal/store"
)

var pairCodeLabel string

var pairCodeCmd = &cobra.Command{
	Use:   "paircode <guild-id>",
	Short: "Issue a one-shot overlay pairing code",
	Long:  "Create a pairing code an overlay can exchange for a client token, without going through the ingest API",
	Args:  cobra.ExactArgs(1),
	RunE:  runPairCode,
}

func init() {
	pairCodeCmd.Flags().StringVar(&pairCodeLabel, "label", "default", "overlay label, e.g. main or alerts")
}

func runPairCode(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	st := store.New(database)
	ctx := context.Background()

	guildID := args[0]
	if _, err := st.EnsureGuild(ctx, guildID, cfg.DefaultDurationSec); err != nil {
		return fmt.Errorf("ensure guild: %w", err)
	}

	code, err := auth.GeneratePairingCode(guildID, pairCodeLabel, cfg.PairingCodeTTL)
	if err != nil {
		return fmt.Errorf("generate pairing code: %w", err)
	}
	if err := st.CreatePairingCode(ctx, code); err != nil {
		return fmt.Errorf("store pairing code: %w", err)
	}

	fmt.Printf("pairing code: %s (guild %s, label %s, expires %s)\n",
		code.Code, code.GuildID, code.Label, code.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
