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
	"sort"
	"strings"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// assetCategoryByExt maps a lowercase file extension (without dot) to
// the asset category it belongs to. Extensions not listed are treated
// as source, not assets, and excluded from the report entirely.
var assetCategoryByExt = map[string]string{
	"png": "image", "jpg": "image", "jpeg": "image", "gif": "image", "svg": "image", "webp": "image", "ico": "image", "bmp": "image",
	"woff": "font", "woff2": "font", "ttf": "font", "otf": "font", "eot": "font",
	"mp3": "audio", "wav": "audio", "ogg": "audio", "flac": "audio",
	"mp4": "video", "mov": "video", "avi": "video", "webm": "video",
	"zip": "archive", "tar": "archive", "gz": "archive", "7z": "archive", "rar": "archive",
	"pdf": "document", "docx": "document", "xlsx": "document", "pptx": "document",
	"wasm": "binary", "so": "binary", "dylib": "binary", "dll": "binary", "exe": "binary",
}

const topAssetFilesCap = 20

func computeAssets(export tokmd.ExportData) *tokmd.AssetReport {
	type catAcc struct {
		files int
		bytes int64
		exts  map[string]bool
	}
	cats := map[string]*catAcc{}
	var totalFiles int
	var totalBytes int64
	var all []tokmd.AssetFileRow

	for _, r := range export.Rows {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(r.Path), "."))
		cat, ok := assetCategoryByExt[ext]
		if !ok {
			continue
		}
		totalFiles++
		totalBytes += r.Bytes
		a, ok := cats[cat]
		if !ok {
			a = &catAcc{exts: map[string]bool{}}
			cats[cat] = a
		}
		a.files++
		a.bytes += r.Bytes
		a.exts[ext] = true
		all = append(all, tokmd.AssetFileRow{Path: r.Path, Bytes: r.Bytes, Category: cat, Extension: ext})
	}

	if totalFiles == 0 {
		return &tokmd.AssetReport{}
	}

	catKeys := sortedKeys(cats)
	catsOut := make([]tokmd.AssetCategoryRow, 0, len(catKeys))
	for _, k := range catKeys {
		a := cats[k]
		exts := make([]string, 0, len(a.exts))
		for e := range a.exts {
			exts = append(exts, e)
		}
		sort.Strings(exts)
		catsOut = append(catsOut, tokmd.AssetCategoryRow{Category: k, Files: a.files, Bytes: a.bytes, Extensions: exts})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Bytes != all[j].Bytes {
			return all[i].Bytes > all[j].Bytes
		}
		return all[i].Path < all[j].Path
	})
	if len(all) > topAssetFilesCap {
		all = all[:topAssetFilesCap]
	}

	return &tokmd.AssetReport{
		TotalFiles: totalFiles, TotalBytes: totalBytes,
		Categories: catsOut, TopFiles: all,
	}
}
