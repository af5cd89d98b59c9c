package redact

import (
	"fmt"
	"log"
	"regexp"
	"strings"
)

var (
	emailRe     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe     = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)
	apiKeyRe    = regexp.MustCompile(`(?i)(api[_-]?key(?:s)?\s*[:=]\s*)([A-Za-z0-9._\-+/=]+)`)
	bearerRe    = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	quotedRe    = regexp.MustCompile(`(?s)"((?:[^"\\]|\\.){40,})"`)
	ageRe       = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:years?\s*old|y/?o)\b`)
	tokenishRe  = regexp.MustCompile(`(?i)(key|token|secret)\s*[:=]\s*([A-Za-z0-9._\-+/=]{6,})`)
	nameFieldRe = regexp.MustCompile(`(?i)(patient|name)\s*[:=]\s*([A-Za-z][A-Za-z .'\-]{1,40})`)
)

// String scrubs credentials and patient-identifying content from free-form
// strings before they reach a log line. Symptom text itself may carry health
// information, so any long quoted excerpt is dropped wholesale.
func String(s string) string {
	if s == "" {
		return s
	}

	out := s
	out = apiKeyRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = bearerRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = tokenishRe.ReplaceAllStringFunc(out, func(m string) string {
		if strings.Contains(m, "[REDACTED]") {
			return m
		}
		parts := tokenishRe.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		return parts[1] + "=[REDACTED]"
	})
	out = nameFieldRe.ReplaceAllString(out, "${1}=[REDACTED_NAME]")
	out = emailRe.ReplaceAllString(out, "[REDACTED_EMAIL]")
	out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	out = ageRe.ReplaceAllString(out, "[REDACTED_AGE]")
	out = quotedRe.ReplaceAllString(out, `"[REDACTED_TEXT]"`)
	for strings.Contains(out, "[REDACTED][REDACTED]") {
		out = strings.ReplaceAll(out, "[REDACTED][REDACTED]", "[REDACTED]")
	}
	return out
}

// Sprintf formats like fmt.Sprintf and scrubs the result.
func Sprintf(format string, args ...interface{}) string {
	return String(fmt.Sprintf(format, args...))
}

// Logf prints a scrubbed log line.
func Logf(format string, args ...interface{}) {
	log.Print(Sprintf(format, args...))
}

// Fatalf prints a scrubbed fatal log line.
func Fatalf(format string, args ...interface{}) {
	log.Fatal(Sprintf(format, args...))
}

// Excerpt returns a length-only description of analyzed text, safe to log
// next to request ids.
func Excerpt(text string) string {
	return fmt.Sprintf("<%d chars>", len(text))
}
