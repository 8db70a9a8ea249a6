// Copyright 2025 The amqpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amqpd/amqpd/common"
	"github.com/amqpd/amqpd/confengine"
	"github.com/amqpd/amqpd/controller"
	"github.com/amqpd/amqpd/internal/sigs"
	"github.com/amqpd/amqpd/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the message broker",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadConfigPath(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		buildInfo := common.BuildInfo{Version: version, GitHash: gitHash, Time: buildTime}
		ctr, err := controller.New(cfg, buildInfo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create controller: %v\n", err)
			os.Exit(1)
		}
		if err := ctr.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start controller: %v\n", err)
			os.Exit(1)
		}

		var reloadTotal int
		for {
			select {
			case <-sigs.Terminate():
				if err := ctr.Stop(); err != nil {
					logger.Errorf("failed to stop cleanly: %v", err)
				}
				return

			case <-sigs.Reload():
				reloadTotal++

				// Reload failures keep the previous configuration running.
				cfg, err := confengine.LoadConfigPath(configPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "failed to load config (count=%d): %v\n", reloadTotal, err)
					continue
				}

				start := time.Now()
				if err := ctr.Reload(cfg); err != nil {
					logger.Errorf("failed to reload config: %v", err)
				}
				logger.Infof("reload (count=%d) take %s", reloadTotal, time.Since(start))
			}
		}
	},
	Example: "# amqpd serve --config amqpd.yaml",
}

var configPath string

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "amqpd.yaml", "Configuration file path")
	rootCmd.AddCommand(serveCmd)
}
