// Package validation checks the values that reach mist from outside: file
// paths and hosts from configuration, URLs for origins and the base
// address, and locations and event data sent by browsers.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxLocationLength bounds locations accepted from browsers.
const MaxLocationLength = 2048

var (
	pathChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	hostChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	urlChars  = []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", " "}
)

func firstContained(s string, chars []string) (string, bool) {
	for _, char := range chars {
		if strings.Contains(s, char) {
			return char, true
		}
	}
	return "", false
}

// ValidatePath validates a file path to prevent path traversal attacks
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	// Clean resolves inner "a/../b" segments; anything left escapes upwards.
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	if char, ok := firstContained(cleanPath, pathChars); ok {
		return fmt.Errorf("path contains dangerous character: %s", char)
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}

	return nil
}

// ValidateHost validates a listen host name.
func ValidateHost(host string) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("host is empty")
	}
	if char, ok := firstContained(host, hostChars); ok {
		return fmt.Errorf("host contains dangerous character: %q", char)
	}
	return nil
}

// ValidateURL validates an absolute http or https URL such as an allowed
// origin or the application base address.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// Only allow http/https schemes to prevent protocol handlers
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if char, ok := firstContained(rawURL, urlChars); ok {
		return fmt.Errorf("URL contains dangerous character: %s", char)
	}
	if strings.ContainsAny(rawURL, "\n\r\t") {
		return fmt.Errorf("URL contains control characters")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}
	if parsed.User != nil {
		return fmt.Errorf("URL must not carry credentials")
	}

	return nil
}

// ValidateLocation validates an in-app location sent by a browser. It must
// be an absolute path on the current origin.
func ValidateLocation(location string) error {
	if location == "" {
		return fmt.Errorf("location is empty")
	}
	if len(location) > MaxLocationLength {
		return fmt.Errorf("location is longer than %d bytes", MaxLocationLength)
	}
	if !strings.HasPrefix(location, "/") {
		return fmt.Errorf("location %q must start with /", location)
	}
	// "//host/x" and "/\host" are read by browsers as another origin.
	if strings.HasPrefix(location, "//") || strings.HasPrefix(location, "/\\") {
		return fmt.Errorf("location %q names another origin", location)
	}
	for _, r := range location {
		if unicode.IsControl(r) {
			return fmt.Errorf("location contains control characters")
		}
	}
	return nil
}

// SanitizeInput removes null bytes and control characters other than
// common whitespace.
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	sanitized.Grow(len(input))
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}
	return sanitized.String()
}

// SanitizeData applies SanitizeInput to every key and value of data. A nil
// map stays nil.
func SanitizeData(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	clean := make(map[string]string, len(data))
	for k, v := range data {
		clean[SanitizeInput(k)] = SanitizeInput(v)
	}
	return clean
}
