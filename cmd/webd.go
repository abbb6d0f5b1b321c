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
	"log"
	"log/slog"

	"github.com/halocircle/guardd/daemon/webd"
	"github.com/halocircle/guardd/params"
	"github.com/spf13/cobra"
)

var optHTTPAddr string

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long:  `Serves fix ingestion and derived state over HTTP`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")
		server := webd.NewWebDaemon(&params.WebDaemonConfig{
			DataDir: params.DatadirRoot,
			ListenerConfig: params.ListenerConfig{
				Address: optHTTPAddr,
				Network: "tcp",
			},
		})
		defer server.Close()

		if err := server.Run(); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()
	webdCmd.PersistentFlags().StringVar(&optHTTPAddr, "address", defaults.Address,
		"HTTP address to listen on")
}
