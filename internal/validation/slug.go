package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// SlugPattern is the format of project, version and translation memory slugs.
	SlugPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,39}$`)

	// LocalePattern accepts BCP 47 like ids: "de", "pt-BR", "zh-Hant-TW", "sr-Latn".
	LocalePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)
)

// MaxDocIDLen caps the length of a document id.
const MaxDocIDLen = 255

// ValidateSlug checks a project, version or TM slug. kind is used in the message.
func ValidateSlug(kind, slug string) error {
	if slug == "" {
		return fmt.Errorf("%s slug cannot be empty", kind)
	}
	if !SlugPattern.MatchString(slug) {
		return fmt.Errorf("%s slug %q must start with a letter or digit and contain only letters, digits, '.', '_' or '-' (max 40)", kind, slug)
	}
	return nil
}

// ValidateLocaleID checks a locale id.
func ValidateLocaleID(localeID string) error {
	if localeID == "" {
		return fmt.Errorf("locale id cannot be empty")
	}
	if !LocalePattern.MatchString(localeID) {
		return fmt.Errorf("invalid locale id %q", localeID)
	}
	return nil
}

// ValidateDocID checks a document id. Doc ids are paths, so '/' is allowed,
// but not empty segments or parent references.
func ValidateDocID(docID string) error {
	if docID == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	if len(docID) > MaxDocIDLen {
		return fmt.Errorf("document id must not exceed %d characters", MaxDocIDLen)
	}
	for _, part := range strings.Split(docID, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid document id %q", docID)
		}
	}
	return nil
}
