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

package analysis

import (
	"path"
	"strings"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// detectArchetype runs the project-shape detectors in a fixed order and
// returns the first match. Detectors only look at the path inventory,
// never file content, so this runs for free alongside every other
// enricher.
func detectArchetype(export tokmd.ExportData) *tokmd.Archetype {
	paths := make([]string, 0, len(export.Rows))
	for _, r := range export.Rows {
		paths = append(paths, r.Path)
	}

	if a := detectRustWorkspace(paths); a != nil {
		return a
	}
	if a := detectNextjsApp(paths); a != nil {
		return a
	}
	if a := detectContainerizedService(paths); a != nil {
		return a
	}
	if a := detectIacProject(paths); a != nil {
		return a
	}
	if a := detectPythonPackage(paths); a != nil {
		return a
	}
	if hasBasename(paths, "package.json") {
		return &tokmd.Archetype{Kind: "node_package", Evidence: []string{"package.json"}}
	}
	return nil
}

func hasBasename(paths []string, name string) bool {
	for _, p := range paths {
		if path.Base(p) == name {
			return true
		}
	}
	return false
}

func countBasename(paths []string, name string) int {
	n := 0
	for _, p := range paths {
		if path.Base(p) == name {
			n++
		}
	}
	return n
}

func hasAnySuffix(paths []string, suffixes ...string) bool {
	for _, p := range paths {
		for _, suf := range suffixes {
			if strings.HasSuffix(p, suf) {
				return true
			}
		}
	}
	return false
}

func hasDirPrefix(paths []string, dir string) bool {
	prefix := dir + "/"
	for _, p := range paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func detectRustWorkspace(paths []string) *tokmd.Archetype {
	count := countBasename(paths, "Cargo.toml")
	if count < 2 {
		return nil
	}
	return &tokmd.Archetype{Kind: "rust_workspace", Evidence: []string{"multiple Cargo.toml manifests"}}
}

func detectNextjsApp(paths []string) *tokmd.Archetype {
	if !hasBasename(paths, "package.json") {
		return nil
	}
	var evidence []string
	if hasAnySuffix(paths, "next.config.js", "next.config.ts", "next.config.mjs") {
		evidence = append(evidence, "next.config")
	}
	if hasDirPrefix(paths, "pages") || hasDirPrefix(paths, "app") {
		evidence = append(evidence, "pages/ or app/ directory")
	}
	if len(evidence) == 0 {
		return nil
	}
	return &tokmd.Archetype{Kind: "nextjs_app", Evidence: evidence}
}

func detectContainerizedService(paths []string) *tokmd.Archetype {
	if !hasBasename(paths, "Dockerfile") {
		return nil
	}
	var evidence = []string{"Dockerfile"}
	if hasBasename(paths, "docker-compose.yml") || hasBasename(paths, "docker-compose.yaml") {
		evidence = append(evidence, "docker-compose manifest")
	}
	if hasBasename(paths, "Chart.yaml") {
		evidence = append(evidence, "Helm chart")
	}
	if hasDirPrefix(paths, "k8s") || hasDirPrefix(paths, "deploy") {
		evidence = append(evidence, "kubernetes manifests directory")
	}
	return &tokmd.Archetype{Kind: "containerized_service", Evidence: evidence}
}

func detectIacProject(paths []string) *tokmd.Archetype {
	var evidence []string
	if hasAnySuffix(paths, ".tf") {
		evidence = append(evidence, "terraform files")
	}
	if hasDirPrefix(paths, "terraform") {
		evidence = append(evidence, "terraform/ directory")
	}
	if hasBasename(paths, "Pulumi.yaml") {
		evidence = append(evidence, "Pulumi.yaml")
	}
	if len(evidence) == 0 {
		return nil
	}
	return &tokmd.Archetype{Kind: "iac_project", Evidence: evidence}
}

func detectPythonPackage(paths []string) *tokmd.Archetype {
	var evidence []string
	if hasBasename(paths, "pyproject.toml") {
		evidence = append(evidence, "pyproject.toml")
	}
	if hasBasename(paths, "setup.py") {
		evidence = append(evidence, "setup.py")
	}
	if len(evidence) == 0 {
		return nil
	}
	return &tokmd.Archetype{Kind: "python_package", Evidence: evidence}
}
