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

// dockvctl is a small inspection tool for the key codec: it decodes
// hex-encoded SubDocKeys from the command line and prints their structure,
// and can round-trip a key to check the encoder and decoder agree.
package main

import (
	"fmt"
	"os"

	"github.com/tabletdb/docdb/pkg/cli"
)

func main() {
	if err := cli.Command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
