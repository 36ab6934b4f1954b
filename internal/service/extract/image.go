package extract

import (
	"strconv"
	"strings"

	"github.com/LouYuanbo1/komprice/internal/infra/crawler/types"
)

var (
	srcsetAttrs = []string{"data-srcset", "srcset"}
	srcAttrs    = []string{"data-src", "data-wood-src", "src"}
)

// imageSource picks the image URL of an img node, preferring the widest
// srcset candidate over the plain source attributes.
func imageSource(img types.Node) (string, error) {
	for _, name := range srcsetAttrs {
		v, ok, err := img.Attr(name)
		if err != nil {
			return "", err
		}
		if ok && strings.TrimSpace(v) != "" {
			if best := widestCandidate(v); best != "" {
				return best, nil
			}
		}
	}
	for _, name := range srcAttrs {
		v, ok, err := img.Attr(name)
		if err != nil {
			return "", err
		}
		if v = strings.TrimSpace(v); ok && v != "" {
			return v, nil
		}
	}
	return "", nil
}

// widestCandidate returns the URL with the largest "NNNw" descriptor. Ties
// and candidates without a width keep the earliest entry.
func widestCandidate(srcset string) string {
	best, bestWidth := "", -1
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 {
			if w, err := strconv.Atoi(strings.TrimSuffix(fields[len(fields)-1], "w")); err == nil {
				width = w
			}
		}
		if width > bestWidth {
			best, bestWidth = fields[0], width
		}
	}
	return best
}
