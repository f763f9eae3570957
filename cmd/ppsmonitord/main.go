/*
Copyright (c) Facebook, Inc. and its affiliates.

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

// Command ppsmonitord monitors one or more serial-attached GNSS receivers'
// pulse-per-second output and publishes correlated UTC times to ntpd's
// shared-memory reference clock.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var (
	configPath string
	pprofAddr  string
)

// rootCmd is ppsmonitord's entry point.
var rootCmd = &cobra.Command{
	Use:   "ppsmonitord",
	Short: "pulse-per-second GNSS time monitor",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/ppsmonitord.yaml", "path to the daemon config")
	rootCmd.PersistentFlags().StringVar(&pprofAddr, "pprofaddr", "", "host:port for pprof, disabled if empty")
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func writePidFile(path string) error {
	return os.WriteFile(path, fmt.Appendf(nil, "%d\n", unix.Getpid()), 0o644) //#nosec G306
}
