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

package main

import (
	"fmt"

	"github.com/ItWillBeSkrskr/gpsd/internal/serialfeed"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listPortsCmd)
}

var listPortsCmd = &cobra.Command{
	Use:   "list-ports",
	Short: "list serial devices visible on this host",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := serialfeed.ListPorts()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}
