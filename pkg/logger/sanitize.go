package logger

import (
	"log/slog"
	"net/url"
	"strings"
	"unicode"
)

// SanitizedEmail masks an email address for logging, e.g. "p*****@******.com".
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "[invalid-email]"
	}

	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return local + "@" + strings.Join(labels, ".")
}

// RedactedAttr hides value in production and passes it through elsewhere.
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

var sensitiveParams = map[string]struct{}{
	"password": {}, "token": {}, "secret": {}, "email": {}, "auth": {}, "sid": {},
}

// SanitizeQueryString reports whether rawQuery carries a sensitive
// parameter and should be dropped from logs entirely. Keys are split into
// words ("resetToken", "access_token") and each word is matched exactly, so
// "classId" passes. A query that does not parse is treated as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for key := range values {
		for _, word := range keyWords(key) {
			if _, ok := sensitiveParams[word]; ok {
				return true
			}
		}
	}
	return false
}

// keyWords splits a parameter name on separators and lower-to-upper case
// changes and lower-cases each word.
func keyWords(key string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	prevLower := false
	for _, r := range key {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			flush()
		}
		cur = append(cur, r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	flush()
	return words
}
