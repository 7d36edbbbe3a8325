package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"nguide/admin/internal/utils"
)

const (
	maxSlugBase    = 220
	maxSlugCountry = 10
	maxSlugLength  = 240
)

var (
	slugSeparators   = regexp.MustCompile(`[^a-z0-9]+`)
	slugCountryStrip = regexp.MustCompile(`[^a-z0-9]`)
)

// Slugify turns a title into an ASCII slug, optionally suffixed with a
// country tag: "Hà Nội Explorer", "Vietnam" -> "ha-noi-explorer-vietnam".
func Slugify(title, country string) string {
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(stripMarks, strings.ToLower(strings.TrimSpace(title)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(title))
	}
	base := slugSeparators.ReplaceAllString(folded, "-")
	base = strings.Trim(base, "-")
	if len(base) > maxSlugBase {
		base = base[:maxSlugBase]
	}

	countrySlug := slugCountryStrip.ReplaceAllString(strings.ToLower(country), "")
	if len(countrySlug) > maxSlugCountry {
		countrySlug = countrySlug[:maxSlugCountry]
	}
	if countrySlug == "" {
		return base
	}
	if base == "" {
		return countrySlug
	}
	slug := base + "-" + countrySlug
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}

// slugCandidate returns base for the first attempt and base-N afterwards.
func slugCandidate(base string) utils.CandidateFunc {
	return func(attempt int) (string, error) {
		if attempt == 0 {
			return base, nil
		}
		return base + "-" + strconv.Itoa(attempt), nil
	}
}

// allocateSlug finds a free slug derived from base using the shared bounded
// allocator.
func allocateSlug(ctx context.Context, base string, exists utils.ExistsFunc) (string, error) {
	if base == "" {
		return "", nil
	}
	return utils.AllocateUnique(ctx, utils.MaxAllocationAttempts, slugCandidate(base), exists)
}
