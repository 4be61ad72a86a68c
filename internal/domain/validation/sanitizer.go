package validation

import (
	"net/url"
	"path"
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultMaxInputLength is the length cap used when callers pass a non-positive maxLength.
const DefaultMaxInputLength = 1000

// Sanitizer validates tool arguments before a handler acts on them.
// It is stateless apart from its denylist and safe for concurrent use.
type Sanitizer struct {
	denylist []Rule
}

// NewSanitizer creates a Sanitizer using DefaultDenylist.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{denylist: DefaultDenylist}
}

// NewSanitizerWithRules creates a Sanitizer with a custom ordered denylist.
func NewSanitizerWithRules(rules []Rule) *Sanitizer {
	return &Sanitizer{denylist: rules}
}

// SanitizeInput checks free-form text and returns its cleaned form.
//
// raw must be a string of at most maxLength characters and must not match
// any denylist rule; the first matching rule rejects the input outright,
// nothing is stripped at that stage. Input that passes has every character
// outside word characters, whitespace, '.' and '-' removed and is trimmed.
func (s *Sanitizer) SanitizeInput(raw any, maxLength int) (string, error) {
	str, ok := raw.(string)
	if !ok {
		return "", NewValidationError(KindInvalidInput, "input must be a string")
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}
	if utf8.RuneCountInString(str) > maxLength {
		return "", NewValidationError(KindInvalidInput, "input exceeds maximum length")
	}

	for _, rule := range s.denylist {
		if rule.Pattern.MatchString(str) {
			return "", &ValidationError{
				Kind:    KindInvalidInput,
				Message: "input contains forbidden content",
				Rule:    rule.Name,
			}
		}
	}

	return strings.TrimSpace(disallowedChars.ReplaceAllString(str, "")), nil
}

// ValidateFilePath returns the normalized form of p, or a path traversal error
// if p contains a ".." segment (before or after normalization), starts with
// "~", or uses any character outside [A-Za-z0-9._/-].
func (s *Sanitizer) ValidateFilePath(p string) (string, error) {
	if p == "" {
		return "", NewValidationError(KindPathTraversal, "file path is required")
	}
	if strings.HasPrefix(p, "~") {
		return "", NewValidationError(KindPathTraversal, "home directory paths are not allowed")
	}
	if !filePathChars.MatchString(p) {
		return "", NewValidationError(KindPathTraversal, "file path contains invalid characters")
	}

	normalized := path.Clean(p)
	if hasParentSegment(p) || hasParentSegment(normalized) {
		return "", NewValidationError(KindPathTraversal, "path traversal not allowed")
	}
	return normalized, nil
}

func hasParentSegment(p string) bool {
	return slices.Contains(strings.Split(p, "/"), "..")
}

// ValidateURL parses raw and checks it against allowedSchemes and the
// private-network host list. Schemes may be given with or without a
// trailing ':'. An empty allowedSchemes means DefaultURLSchemes.
//
// Hosts are compared as literal strings; a hostname that resolves to a
// private address is not detected.
func (s *Sanitizer) ValidateURL(raw string, allowedSchemes []string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return nil, NewValidationError(KindInvalidInput, "invalid URL")
	}

	if len(allowedSchemes) == 0 {
		allowedSchemes = DefaultURLSchemes
	}
	scheme := strings.ToLower(u.Scheme)
	if !slices.ContainsFunc(allowedSchemes, func(allowed string) bool {
		return strings.ToLower(strings.TrimSuffix(allowed, ":")) == scheme
	}) {
		return nil, NewValidationError(KindURLScheme, "URL scheme not allowed")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, NewValidationError(KindInvalidInput, "URL must include a host")
	}
	if isPrivateHost(host) {
		return nil, NewValidationError(KindURLPrivateNetwork, "URL targets a private network")
	}
	return u, nil
}

func isPrivateHost(host string) bool {
	if slices.Contains(privateHosts, host) {
		return true
	}
	for _, prefix := range privateHostPrefixes {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	return false
}
