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

package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/tabletdb/docdb/pkg/dockey"
)

var decodeRequireTimestamp bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex-encoded-key>",
	Short: "decode a hex-encoded SubDocKey and print its structure",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeRequireTimestamp, "require-timestamp", false,
		"fail if the key has no trailing timestamp instead of decoding it bare")
}

func runDecode(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(args[0])
	if err != nil {
		return errors.Wrapf(err, "decoding hex argument")
	}
	key, err := dockey.FullyDecodeSubDocKeyFrom(raw, decodeRequireTimestamp)
	if err != nil {
		return errors.Wrapf(err, "decoding SubDocKey")
	}
	fmt.Fprintln(cmd.OutOrStdout(), key.String())
	return nil
}
