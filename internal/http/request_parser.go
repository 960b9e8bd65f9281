// Package http serves the ledger entry page and its htmx partials.
//
// This file holds helpers for reading and sanitising posted form values.

package http

import (
	"net/http"
	"net/url"
	"strings"

	"kakeibo/internal/core"
)

// Form field names besides the entry fields.
const (
	formDocumentID = "document_id"
	formRegion     = "region"
)

// maxIDLength bounds a posted document id.
const maxIDLength = 1000

// ParseEntryForm reads the five entry fields verbatim. The sheet interprets
// them with USER_ENTERED, so whitespace and length are left alone.
func ParseEntryForm(form url.Values) core.FormValues {
	var values core.FormValues
	for _, field := range core.FormFields() {
		_ = values.Set(field, form.Get(field))
	}
	return values
}

// isHTMX reports whether the request came from htmx rather than a plain form post.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput cleans an identifier echoed back from a select: trims
// whitespace, drops control characters other than tab and newlines, and caps
// the length.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	if r := []rune(s); len(r) > maxIDLength {
		s = string(r[:maxIDLength])
	}
	return s
}

// ParseFormOrFail parses the request form and returns an error response on failure.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("リクエストの形式が正しくありません")
	}
	return nil
}
