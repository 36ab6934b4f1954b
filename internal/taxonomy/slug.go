// Package taxonomy normalizes vendor category labels onto the universal category tree.
package taxonomy

import (
	"regexp"
	"strings"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, collapses every run of characters outside [a-z0-9]
// into a single dash and trims dashes from both ends.
//
// It is the only slug rule in the module: the category tree, alias map and
// category bootstrap all derive slugs through it.
func Slugify(s string) string {
	slug := nonAlnumRun.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}
