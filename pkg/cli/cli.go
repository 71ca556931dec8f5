// Copyright 2024 The Docdb Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package cli assembles the dockvctl command tree on top of
// github.com/spf13/cobra, in the shape of cockroach's pkg/cli: each
// subcommand lives in its own file and is added to the root command by
// this file's init.
package cli

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "dockvctl [command] (flags)",
	Short: "inspect and exercise the docdb key codec",
}

// Command returns the root dockvctl command.
func Command() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(roundtripCmd)
}
