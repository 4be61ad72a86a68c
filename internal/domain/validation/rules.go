package validation

import "regexp"

// Rule is a named, precompiled denylist pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultDenylist is evaluated in order by SanitizeInput; the first match wins.
//
// It is a defense-in-depth filter for free-form text, not a complete
// injection guard.
var DefaultDenylist = []Rule{
	{Name: "shell_metacharacters", Pattern: regexp.MustCompile("[;&|`$(){}\\[\\]]")},
	{Name: "command_keywords", Pattern: regexp.MustCompile(`(?i)\b(eval|exec|system|spawn)\b`)},
	{Name: "destructive_keywords", Pattern: regexp.MustCompile(`(?i)\b(rm|del|format|shutdown|reboot)\b`)},
	{Name: "path_traversal", Pattern: regexp.MustCompile(`\.\.[/\\]`)},
	{Name: "angle_brackets", Pattern: regexp.MustCompile(`[<>]`)},
}

// disallowedChars matches everything outside word characters, whitespace, '.' and '-'.
var disallowedChars = regexp.MustCompile(`[^\w\s.-]`)

// filePathChars is the full set of characters a file path may use.
var filePathChars = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// privateHostPrefixes are literal textual prefixes treated as private networks.
// Matching is on the hostname string; nothing is resolved.
var privateHostPrefixes = []string{"192.168.", "10.", "172."}

// privateHosts are literal hostnames treated as loopback.
var privateHosts = []string{"localhost", "127.0.0.1"}

// DefaultURLSchemes are the schemes accepted by tools that take URLs.
var DefaultURLSchemes = []string{"http", "https"}
