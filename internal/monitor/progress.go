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
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"
)

// ProgressPrinter optionally renders the per-cycle peer states, see spec
// §4.9 "optionally emit per-peer progress lines".
type ProgressPrinter interface {
	Print(buckets *SortedBuckets)
}

// TableProgress renders the current SortedBuckets as a three-column table,
// coloring the state column when stdout is a terminal.
type TableProgress struct {
	colorize bool
}

// NewTableProgress builds a ProgressPrinter gated on whether stdout is a
// terminal, the same term.IsTerminal check the teacher's CLI tools use
// before emitting ANSI color codes.
func NewTableProgress() *TableProgress {
	return &TableProgress{colorize: term.IsTerminal(int(os.Stdout.Fd()))}
}

// Print renders one row per state bucket: state name, count, members.
func (p *TableProgress) Print(buckets *SortedBuckets) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"state", "count", "peers"})

	rows := []struct {
		label string
		keys  []string
		paint func(string, ...interface{}) string
	}{
		{"present", buckets.Present, color.GreenString},
		{"just_returned", buckets.JustReturned, color.CyanString},
		{"just_lost", buckets.JustLost, color.YellowString},
		{"still_lost", buckets.StillLost, color.RedString},
	}

	for _, r := range rows {
		label := r.label
		if p.colorize {
			label = r.paint(label)
		}
		table.Append([]string{label, strconv.Itoa(len(r.keys)), strings.Join(r.keys, ", ")})
	}
	table.Render()
}
