/*
Copyright (c) wg-monitor authors.

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

package monitor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrNotFound is returned by Locate when none of the search-path
// candidates exist.
var ErrNotFound = fmt.Errorf("no candidate file found")

// Locate implements the file-discovery search order from spec §6: explicit
// flag path, <iface><ext> in cwd, <base> in cwd, /etc/wg-monitor/<iface><ext>,
// /etc/wg-monitor/<base>.
func Locate(explicit, iface, base, ext string) (string, error) {
	candidates := []string{
		explicit,
		iface + ext,
		base,
		filepath.Join("/etc/wg-monitor", iface+ext),
		filepath.Join("/etc/wg-monitor", base),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", ErrNotFound
}

// ParsedList is the result of parsing a peer-list or URL-list file:
// valid entries plus the lines that failed validation (logged, not fatal).
type ParsedList struct {
	Valid   []string
	Invalid []string
}

// ParsePeerList reads a peer-list file: blank lines and comment lines (#,
// optionally indented) are ignored, inline comments stripped, and entries
// validated as exactly 44 characters ending in '='.
func ParsePeerList(path string) (*ParsedList, error) {
	return parseList(path, validPeerKey)
}

// ParseURLList reads a URL-list file with the same lexical rules as the
// peer list but no length constraint on entries.
func ParseURLList(path string) (*ParsedList, error) {
	return parseList(path, func(s string) bool { return s != "" })
}

func parseList(path string, valid func(string) bool) (*ParsedList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &FatalError{ExitCode: ExitFileEmpty, Err: fmt.Errorf("%s is empty", path)}
	}
	if !utf8.Valid(data) {
		return nil, &FatalError{ExitCode: ExitNonUTF8, Err: fmt.Errorf("%s is not valid UTF-8", path)}
	}

	result := &ParsedList{}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if idx := strings.IndexByte(trimmed, '#'); idx >= 0 {
			trimmed = strings.TrimSpace(trimmed[:idx])
		}
		if trimmed == "" {
			continue
		}
		if valid(trimmed) {
			result.Valid = append(result.Valid, trimmed)
		} else {
			result.Invalid = append(result.Invalid, trimmed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// validPeerKey checks the 44-character, trailing-'=' shape from spec §3.
func validPeerKey(s string) bool {
	return len(s) == 44 && s[43] == '='
}

// PeerSetFromList turns a ParsedList's valid entries into the membership
// set the Orchestrator's stepping pass consults.
func PeerSetFromList(list *ParsedList) map[string]bool {
	set := make(map[string]bool, len(list.Valid))
	for _, k := range list.Valid {
		set[k] = true
	}
	return set
}
