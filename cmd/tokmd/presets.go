// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/kraklabs/tokmd/internal/output"
	"github.com/kraklabs/tokmd/pkg/preset"
)

func runPresets(_ []string, globals GlobalFlags) {
	if globals.JSON {
		names := make([]string, 0, len(preset.All))
		for _, n := range preset.All {
			names = append(names, string(n))
		}
		_ = output.JSON(struct {
			Presets []string `json:"presets"`
		}{Presets: names})
		return
	}

	for _, n := range preset.All {
		fmt.Println(n)
	}
}
