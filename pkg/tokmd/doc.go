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

// Package tokmd holds the pure data model shared by every analysis
// enricher, the context/handoff planner, and the receipt envelope.
//
// Tier 1 contract: no I/O, no business logic, just the shapes that travel
// across subsystem boundaries. Field order matches serialization order;
// maps that travel to JSON are built in sorted-key order by their
// producers rather than relying on a custom MarshalJSON.
package tokmd
