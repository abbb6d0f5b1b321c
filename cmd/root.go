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
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var optVerbose int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guardd",
	Short: "Personal-safety telemetry daemon",
	Long: `guardd ingests location fixes from companion apps, infers movement,
and keeps a safety-reward ledger per user.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&optVerbose, "verbose", "v",
		"Increase logging verbosity (-v debug)")
}

// setDefaultSlog applies the verbosity flag to the default logger.
// Call it first thing from every subcommand Run.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.LevelInfo
	if optVerbose > 0 {
		level = slog.LevelDebug
	}
	slog.SetLogLoggerLevel(level)
}
