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
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/tabletdb/docdb/pkg/dockey"
)

var roundtripCmd = &cobra.Command{
	Use:   "roundtrip <hex-encoded-key>",
	Short: "decode then re-encode a SubDocKey and report whether the bytes match",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoundtrip,
}

func runRoundtrip(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(args[0])
	if err != nil {
		return errors.Wrapf(err, "decoding hex argument")
	}
	key, rest, err := dockey.DecodeSubDocKeyFrom(raw, false)
	if err != nil {
		return errors.Wrapf(err, "decoding SubDocKey")
	}
	reencoded := key.Encode(nil, key.HasTimestamp())
	original := raw[:len(raw)-len(rest)]
	out := cmd.OutOrStdout()
	if bytes.Equal(reencoded, original) {
		fmt.Fprintf(out, "ok: %s\n", key.String())
		return nil
	}
	fmt.Fprintf(out, "mismatch: decoded %s\n  original:   %x\n  re-encoded: %x\n",
		key.String(), original, reencoded)
	return errors.Newf("roundtrip mismatch")
}
