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
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
language=en
subject=wg-monitor: $serverName
powerRestored=$serverName is back up.
peerSingular=peer
peerPlural=peers

# a french block, comments are ignored
language=fr
subject=wg-monitor : $serverName
powerRestored=$serverName est de nouveau en ligne.

language=debug
subject=debug subject
`

func TestParseCatalogSplitsOnBlankLines(t *testing.T) {
	catalog, err := parseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, catalog, 3)
	require.Equal(t, "en", catalog["en"].Language)
	require.Equal(t, "peer", catalog["en"].PeerSingular)
	require.Equal(t, "fr", catalog["fr"].Language)
	require.Contains(t, catalog["fr"].PowerRestored, "de nouveau")
}

func TestParseCatalogIgnoresCommentLines(t *testing.T) {
	catalog, err := parseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Equal(t, "wg-monitor : $serverName", catalog["fr"].Subject)
}

func TestAvailableLanguagesExcludesDebug(t *testing.T) {
	catalog, err := parseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	langs := AvailableLanguages(catalog)
	sort.Strings(langs)
	require.Equal(t, []string{"en", "fr"}, langs)

	_, ok := catalog["debug"]
	require.True(t, ok, "debug block is still present in the catalog for direct lookup")
}

func TestParseCatalogMissingLanguageLineErrors(t *testing.T) {
	_, err := parseCatalog(strings.NewReader("subject=no language here\n"))
	require.Error(t, err)
}

func TestParseCatalogEmptyInputYieldsEmptyCatalog(t *testing.T) {
	catalog, err := parseCatalog(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, catalog)
}
