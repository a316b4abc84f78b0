package model

import "strings"

// Headers maps lower-cased header names to trimmed values.
type Headers map[string]string

// Get returns the value stored for name, matching case-insensitively.
func (h Headers) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Part is one boundary-delimited section of an archive container.
type Part struct {
	Headers Headers
	Body    string
}

// ContentType returns the part's media type without parameters.
func (p Part) ContentType() string {
	ct := p.Headers.Get("content-type")
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.TrimSpace(ct)
}

// Resource describes a non-document part scheduled for extraction.
type Resource struct {
	ContentLocation  string
	ContentType      string
	TransferEncoding string
	Body             string
}

// Record maps a resource's original content location to the file it was
// written to.
type Record struct {
	ContentLocation string
	Path            string
}
