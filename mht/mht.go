// Package mht splits a multipart web-archive container into its parts.
//
// The format is handled leniently on purpose: real archives produced by
// chat exporters are frequently malformed in ways a conformant MIME
// reader rejects, so parts are located by splitting on literal boundary
// lines and headers are parsed as bare "key: value" lines.
package mht

import (
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/quotedprintable"
	"regexp"
	"strings"

	htmlcharset "golang.org/x/net/html/charset"

	"github.com/qqmht/mht2html/model"
)

var (
	ErrNoBoundary = errors.New("archive missing boundary declaration")
	ErrNoHTMLPart = errors.New("archive missing text/html part")
	ErrNoHTMLBody = errors.New("html part has empty body")
)

var boundaryPattern = regexp.MustCompile(`boundary="([^"]+)"`)

// ParseHeaders parses a block of "Key: Value" lines into a Headers map.
// Keys are lower-cased and trimmed, values trimmed. Lines without a
// colon are ignored. Duplicate keys keep the last occurrence.
func ParseHeaders(block string) model.Headers {
	headers := make(model.Headers)
	for _, line := range strings.Split(block, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return headers
}

// Split locates the declared boundary token and cuts the raw document
// into its parts, preserving their order of appearance. The chunk
// preceding the first boundary line (the container's own header block)
// is included; it carries no content location and is skipped by the
// downstream passes.
func Split(content string) ([]model.Part, error) {
	match := boundaryPattern.FindStringSubmatch(content)
	if match == nil {
		return nil, ErrNoBoundary
	}

	marker := regexp.MustCompile(`--` + regexp.QuoteMeta(match[1]) + `(?:--)?(?:\r?\n|\z)`)
	chunks := marker.Split(content, -1)

	parts := make([]model.Part, 0, len(chunks))
	for _, chunk := range chunks {
		headerBlock, body := splitPart(chunk)
		parts = append(parts, model.Part{
			Headers: ParseHeaders(headerBlock),
			Body:    body,
		})
	}
	return parts, nil
}

// FindHTML returns the decoded body of the first text/html part. The
// body is transfer-decoded if the part declares an encoding, transcoded
// to UTF-8 if its content type names a charset, and trimmed of
// surrounding whitespace.
func FindHTML(parts []model.Part) (string, error) {
	for _, part := range parts {
		if !strings.HasPrefix(part.ContentType(), "text/html") {
			continue
		}

		body := strings.TrimSpace(part.Body)
		if body == "" {
			return "", ErrNoHTMLBody
		}

		body = decodeTransfer(body, part.Headers.Get("content-transfer-encoding"))
		body = decodeCharset(body, charsetParam(part.Headers.Get("content-type")))
		return strings.TrimSpace(body), nil
	}
	return "", ErrNoHTMLPart
}

// Resources returns every part that carries a content location and is
// not the HTML document, in document order. Bodies are trimmed but left
// encoded; the extractor decodes them.
func Resources(parts []model.Part) []model.Resource {
	var resources []model.Resource
	for _, part := range parts {
		location := part.Headers.Get("content-location")
		if location == "" {
			continue
		}
		if strings.HasPrefix(part.ContentType(), "text/html") {
			continue
		}

		encoding := part.Headers.Get("content-transfer-encoding")
		if encoding == "" {
			encoding = "7bit"
		}

		resources = append(resources, model.Resource{
			ContentLocation:  location,
			ContentType:      part.ContentType(),
			TransferEncoding: encoding,
			Body:             strings.TrimSpace(part.Body),
		})
	}
	return resources
}

// splitPart cuts a chunk at the first blank line into its header block
// and body.
func splitPart(chunk string) (headerBlock, body string) {
	if idx := strings.Index(chunk, "\r\n\r\n"); idx >= 0 {
		return chunk[:idx], chunk[idx+4:]
	}
	if idx := strings.Index(chunk, "\n\n"); idx >= 0 {
		return chunk[:idx], chunk[idx+2:]
	}
	return chunk, ""
}

func decodeTransfer(body, encoding string) string {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(stripWhitespace(body))
		if err != nil {
			return body
		}
		return string(decoded)
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
		if err != nil {
			return body
		}
		return string(decoded)
	default:
		return body
	}
}

// decodeCharset transcodes body to UTF-8 according to label. Unknown
// labels and transcoding failures leave the body unchanged.
func decodeCharset(body, label string) string {
	if label == "" || strings.EqualFold(label, "utf-8") {
		return body
	}

	reader, err := htmlcharset.NewReaderLabel(label, strings.NewReader(body))
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return body
	}
	return string(decoded)
}

func charsetParam(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
