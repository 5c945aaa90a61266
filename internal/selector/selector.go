// Package selector derives, per language, the glob patterns covering every
// file extension claimed by that language's capability providers.
package selector

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mehmetkoksal-w/lingua/internal/provider"
)

// DocumentSelector describes which file paths a language's handlers apply to.
// Patterns are doublestar globs of the form "**/*<ext>", sorted by extension
// so repeated builds are byte-for-byte identical. Immutable after Build.
type DocumentSelector struct {
	Language string
	Patterns []string
}

// Matches reports whether path falls under any of the selector's patterns.
// An empty selector matches nothing.
func (s DocumentSelector) Matches(path string) bool {
	normalized := filepath.ToSlash(path)
	for _, p := range s.Patterns {
		ok, err := doublestar.Match(p, normalized)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// Empty reports whether the selector has no patterns.
func (s DocumentSelector) Empty() bool { return len(s.Patterns) == 0 }

// Build groups providers by language and produces one selector per language.
// Extensions claimed by multiple providers of the same language collapse to a
// single pattern. Pattern order is not semantically significant but is kept
// deterministic (sorted by extension) for reproducible logs.
func Build(providers []provider.CapabilityProvider) map[string]DocumentSelector {
	extsByLang := make(map[string]map[string]struct{})
	for _, p := range providers {
		lang := p.Language()
		if _, ok := extsByLang[lang]; !ok {
			extsByLang[lang] = make(map[string]struct{})
		}
		for _, ext := range p.Extensions() {
			ext = normalizeExt(ext)
			if ext == "" {
				continue
			}
			extsByLang[lang][ext] = struct{}{}
		}
	}

	selectors := make(map[string]DocumentSelector, len(extsByLang))
	for lang, exts := range extsByLang {
		patterns := make([]string, 0, len(exts))
		for ext := range exts {
			patterns = append(patterns, "**/*"+ext)
		}
		sort.Strings(patterns)
		selectors[lang] = DocumentSelector{Language: lang, Patterns: patterns}
	}
	return selectors
}

// normalizeExt ensures the extension carries a leading dot.
func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
