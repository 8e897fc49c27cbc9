package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Aliases maps tags to their human-readable descriptions and back. The two
// maps are kept bijective so selecting either side resolves the other.
type Aliases struct {
	byTag   map[string]string
	byAlias map[string]string
	tags    []string
}

// LoadAliases reads a JSON object of tag to alias mappings and sanitizes it
// against the tag set. A missing path yields identity aliases.
func LoadAliases(path string, tags []string) (*Aliases, error) {
	if path == "" {
		return SanitizeAliases(nil, tags), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aliases file: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse aliases file %s: %w", path, err)
	}

	return SanitizeAliases(raw, tags), nil
}

// SanitizeAliases builds a clean alias set for the given tags:
// entries for unknown tags are dropped, blank aliases fall back to the tag,
// tags with no entry get a placeholder description, and duplicate aliases are
// made unique by suffixing the tag name.
func SanitizeAliases(raw map[string]string, tags []string) *Aliases {
	known := make(map[string]bool, len(tags))
	for _, t := range tags {
		known[t] = true
	}

	byTag := make(map[string]string, len(tags))
	for tag, alias := range raw {
		if tag == "" || !known[tag] {
			continue
		}
		if strings.TrimSpace(alias) == "" {
			alias = tag
		}
		byTag[tag] = alias
	}

	// Count collisions before filling gaps so placeholder text never
	// participates in the duplicate check.
	counts := make(map[string]int, len(byTag))
	for _, alias := range byTag {
		counts[alias]++
	}

	for _, tag := range tags {
		alias, ok := byTag[tag]
		switch {
		case !ok:
			byTag[tag] = fmt.Sprintf("No description available for %s", tag)
		case counts[alias] > 1:
			byTag[tag] = fmt.Sprintf("%s %s", alias, tag)
		}
	}

	byAlias := make(map[string]string, len(byTag))
	for tag, alias := range byTag {
		byAlias[alias] = tag
	}

	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)

	return &Aliases{byTag: byTag, byAlias: byAlias, tags: sorted}
}

// Alias returns the description for a tag.
func (a *Aliases) Alias(tag string) (string, bool) {
	alias, ok := a.byTag[tag]
	return alias, ok
}

// Tag resolves an alias back to its tag.
func (a *Aliases) Tag(alias string) (string, bool) {
	tag, ok := a.byAlias[alias]
	return tag, ok
}

// Tags returns the sorted tag names covered by the alias set.
func (a *Aliases) Tags() []string {
	return append([]string(nil), a.tags...)
}

// ByTag returns a copy of the tag to alias mapping.
func (a *Aliases) ByTag() map[string]string {
	out := make(map[string]string, len(a.byTag))
	for k, v := range a.byTag {
		out[k] = v
	}
	return out
}
