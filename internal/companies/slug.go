package companies

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fegerV/arplatform/pkg/apierrors"
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from name: lowercased, non-alphanumeric
// runs collapsed to a single hyphen, leading/trailing hyphens trimmed.
// Grounded on internal/organizations.slugRegex's lowercase-alphanumeric-
// hyphen convention, generalized from client-supplied-slug validation to
// server-side derivation (spec.md requires deriving, never trusting the
// caller's slug).
func Slugify(name string) string {
	s := slugInvalidChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "company"
	}
	return s
}

// UniqueSlug returns base if it's free, otherwise the lowest-numbered
// "base-N" (N starting at 2) that isn't already taken by another company.
func (r *Repository) UniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		_, err := r.GetBySlug(ctx, candidate)
		if err != nil {
			if apierrors.KindOf(err) == apierrors.KindNotFound {
				return candidate, nil
			}
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
