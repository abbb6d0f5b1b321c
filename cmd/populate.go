/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halocircle/guardd/app"
	"github.com/halocircle/guardd/state"
	"github.com/halocircle/guardd/stream"
	"github.com/halocircle/guardd/types/fix"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var optDatadir string

// populateCmd represents the import command
var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Replay fixes from an stdin stream",
	Long: `

Fixes from mixed users ARE supported, e.g. a whole backup archive.

Fixes are decoded as NDJSON lines from stdin and routed to a per-user
session in input order. Sessions are ingest-only: no device subscription,
battery falls back to the drain model. Order matters; speed smoothing,
movement detection, and reward observations all key off fix chronology,
so a shuffled source produces different (wrong) derived state.

Undecodable or untagged lines are skipped and counted, not fatal.
Processing is serial on purpose. One user's history window is owned by
one session, and the input interleaves users.

Examples:

  zcat fixes.ndjson.gz | guardd populate --datadir /tmp/guardd-replay
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := state.NewStore(optDatadir)
		defer store.Close()

		sessions := map[fix.UserID]*app.Session{}
		sessionFor := func(user fix.UserID) *app.Session {
			if s, ok := sessions[user]; ok {
				return s
			}
			s := app.NewSession(user, app.Options{Store: store})
			sessions[user] = s
			return s
		}

		meter := stream.NewTickMeter(5 * time.Second)
		defer meter.Stop()

		n, skipped := 0, 0
		for line := range stream.Lines(ctx, os.Stdin) {
			user, f, err := fix.DecodeTagged(line)
			if err != nil || user == "" {
				skipped++
				continue
			}
			sessionFor(user).HandleFix(ctx, f)
			meter.Mark(f.Time, len(line))
			n++
		}

		slog.Info("Replay done", "fixes", n, "skipped", skipped,
			"users", len(sessions))
	},
}

func init() {
	rootCmd.AddCommand(populateCmd)

	flags := pflag.NewFlagSet("populate", pflag.ContinueOnError)
	flags.StringVar(&optDatadir, "datadir", "",
		"Data directory for per-user state (default ~/.guardd)")
	populateCmd.PersistentFlags().AddFlagSet(flags)
}
