package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"pageforge/internal/intent"
)

// Pages land under a section derived from intent so the published site
// groups related pages, with a query slug for readability and a content
// hash suffix so regenerated content gets a distinct path.

var sectionByIntent = map[intent.Type]string{
	intent.TypeDiscovery:     "discover",
	intent.TypeComparison:    "compare",
	intent.TypeUseCase:       "solutions",
	intent.TypeProductDetail: "products",
	intent.TypePurchase:      "shop",
	intent.TypeSupport:       "support",
	intent.TypeGift:          "gifts",
	intent.TypeMedical:       "wellness",
	intent.TypeAccessibility: "accessibility",
	intent.TypePartnership:   "partners",
}

var nonSlugRE = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLen = 60

// Slugify reduces free text to a URL path segment.
func Slugify(s string) string {
	slug := nonSlugRE.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		if i := strings.LastIndexByte(slug, '-'); i > 0 {
			slug = slug[:i]
		}
	}
	if slug == "" {
		slug = "page"
	}
	return slug
}

// DerivePath computes the destination path for a page. The same query with
// the same rendered content always maps to the same path, so re-persisting
// is an overwrite rather than a duplicate.
func DerivePath(siteSection, query string, intentType intent.Type, blocks []Block) string {
	section := sectionByIntent[intentType]
	if section == "" {
		section = "discover"
	}

	h := sha256.New()
	for _, b := range blocks {
		h.Write([]byte(b.HTML))
	}
	suffix := hex.EncodeToString(h.Sum(nil))[:8]

	parts := []string{}
	if siteSection != "" {
		parts = append(parts, Slugify(siteSection))
	}
	parts = append(parts, section, Slugify(query)+"-"+suffix)
	return "/" + strings.Join(parts, "/")
}
