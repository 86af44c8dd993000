// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"strings"
	"testing"
)

func TestCompletionScript(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish"} {
		t.Run(shell, func(t *testing.T) {
			script, ok := completionScript(shell)
			if !ok {
				t.Fatalf("completionScript(%q) not found", shell)
			}
			for _, cmd := range []string{"init", "import", "taxonomy", "status"} {
				if !strings.Contains(script, cmd) {
					t.Errorf("%s script does not mention %q", shell, cmd)
				}
			}
			if !strings.Contains(script, "skip-bad-rows") {
				t.Errorf("%s script does not complete import flags", shell)
			}
		})
	}

	if _, ok := completionScript("powershell"); ok {
		t.Error("completionScript(powershell) should not be supported")
	}
}
