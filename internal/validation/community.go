// Package validation holds input rules shared by services and handlers.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPostContent is the longest accepted post body in characters.
	MaxPostContent = 5000
	// MaxCommunityName is the longest accepted community name in characters.
	MaxCommunityName = 120
	// MaxSlugLength bounds generated and validated slugs.
	MaxSlugLength = 48
	// MaxUserDescription is the longest accepted profile description.
	MaxUserDescription = 500
)

var (
	communitySlugRegex = regexp.MustCompile(`^[a-z0-9-]{3,48}$`)
	usernameRegex      = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)
	slugStripRegex     = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashRegex      = regexp.MustCompile(`-{2,}`)
	slugSpaceRegex     = regexp.MustCompile(`[\s_]+`)
)

var reservedCommunitySlugs = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"auth":      {},
	"community": {},
	"mine":      {},
	"new":       {},
	"settings":  {},
	"users":     {},
	"user":      {},
	"posts":     {},
	"post":      {},
	"ws":        {},
	"swagger":   {},
	"metrics":   {},
	"health":    {},
	"login":     {},
	"signup":    {},
}

// GenerateSlug derives a URL slug from a display name.
func GenerateSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugSpaceRegex.ReplaceAllString(s, "-")
	s = slugStripRegex.ReplaceAllString(s, "")
	s = slugDashRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	return s
}

// ValidateCommunitySlug validates slug format and reserved names.
func ValidateCommunitySlug(slug string) error {
	if !communitySlugRegex.MatchString(slug) {
		return fmt.Errorf("slug must be 3-48 characters and contain only lowercase letters, numbers, and hyphens")
	}

	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return fmt.Errorf("slug cannot start or end with a hyphen")
	}

	if _, exists := reservedCommunitySlugs[slug]; exists {
		return fmt.Errorf("slug is reserved")
	}

	return nil
}

// ValidateCommunityName checks a trimmed community name.
func ValidateCommunityName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 3 || n > MaxCommunityName {
		return fmt.Errorf("name must be 3-%d characters", MaxCommunityName)
	}
	return nil
}

// ValidatePostContent checks a trimmed post body.
func ValidatePostContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return fmt.Errorf("content is required")
	}
	if n > MaxPostContent {
		return fmt.Errorf("content must be at most %d characters", MaxPostContent)
	}
	return nil
}

// ValidateUsername checks the public handle.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-32 characters of letters, numbers, and underscores")
	}
	return nil
}

// ValidateUserDescription checks a trimmed profile description.
func ValidateUserDescription(description string) error {
	if n := utf8.RuneCountInString(description); n > MaxUserDescription {
		return fmt.Errorf("description must be at most %d characters", MaxUserDescription)
	}
	return nil
}

// ValidateAvatarURL accepts an empty value or an absolute http(s) URL.
func ValidateAvatarURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("avatar must be an absolute http(s) URL")
	}
	return nil
}
