package parser

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for links that are not 1688 offer pages.
var ErrInvalidURL = errors.New("invalid 1688 offer url")

// URLKind classifies an accepted offer link.
type URLKind int

const (
	KindInvalid URLKind = iota
	KindDesktop
	KindMobile
	KindGeneric
)

func (k URLKind) String() string {
	switch k {
	case KindDesktop:
		return "desktop"
	case KindMobile:
		return "mobile"
	case KindGeneric:
		return "generic"
	default:
		return "invalid"
	}
}

const (
	desktopHost = "detail.1688.com"
	mobileHost  = "m.1688.com"
)

// Patterns are anchored at the start only, so query strings and fragments
// are tolerated.
var (
	desktopPattern = regexp.MustCompile(`^https?://detail\.1688\.com/offer/\d+\.html`)
	mobilePattern  = regexp.MustCompile(`^https?://m\.1688\.com/offer/\d+\.html`)
	genericPattern = regexp.MustCompile(`^https?://.*\.1688\.com/.*offer.*`)
	productIDRe    = regexp.MustCompile(`offer/(\d+)`)
)

// ClassifyURL reports which accepted shape raw matches.
func ClassifyURL(raw string) URLKind {
	switch {
	case desktopPattern.MatchString(raw):
		return KindDesktop
	case mobilePattern.MatchString(raw):
		return KindMobile
	case genericPattern.MatchString(raw):
		return KindGeneric
	default:
		return KindInvalid
	}
}

// ValidateURL returns ErrInvalidURL when raw is not an offer link.
func ValidateURL(raw string) error {
	if ClassifyURL(raw) == KindInvalid {
		return ErrInvalidURL
	}
	return nil
}

// IsDesktopURL reports whether raw is a desktop offer link that has a mobile
// mirror.
func IsDesktopURL(raw string) bool {
	return ClassifyURL(raw) == KindDesktop
}

// MobileURL swaps the desktop host for the mobile one.
func MobileURL(raw string) string {
	return strings.Replace(raw, desktopHost, mobileHost, 1)
}

// IsMobileHost reports whether raw points at the mobile site.
func IsMobileHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), mobileHost)
}

// ProductID extracts the numeric offer id, or nil when absent.
func ProductID(raw string) *string {
	m := productIDRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	id := m[1]
	return &id
}
