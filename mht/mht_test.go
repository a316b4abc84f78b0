package mht

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const sampleArchive = "From: <Saved by mht2html>\n" +
	"Content-Type: multipart/related; boundary=\"----=_Part_01\"\n" +
	"\n" +
	"------=_Part_01\n" +
	"Content-Type: text/html; charset=utf-8\n" +
	"\n" +
	"<html><body><img src=\"cid:a.jpg\"></body></html>\n" +
	"------=_Part_01\n" +
	"Content-Type: image/jpeg\n" +
	"Content-Location: a.jpg\n" +
	"Content-Transfer-Encoding: base64\n" +
	"\n" +
	"aGVsbG8gd29ybGQ=\n" +
	"------=_Part_01--\n"

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  map[string]string
	}{
		{
			name:  "basic",
			block: "Content-Type: text/html\nContent-Location: a.jpg",
			want:  map[string]string{"content-type": "text/html", "content-location": "a.jpg"},
		},
		{
			name:  "case insensitive keys collide",
			block: "Content-Type: first\ncontent-type: second",
			want:  map[string]string{"content-type": "second"},
		},
		{
			name:  "lines without colon ignored",
			block: "no colon here\nContent-Type: text/plain",
			want:  map[string]string{"content-type": "text/plain"},
		},
		{
			name:  "value keeps inner colons",
			block: "Content-Location: https://example.com/x",
			want:  map[string]string{"content-location": "https://example.com/x"},
		},
		{
			name:  "empty input",
			block: "",
			want:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseHeaders(tt.block)
			if !reflect.DeepEqual(map[string]string(got), tt.want) {
				t.Errorf("ParseHeaders() = %v, want %v", got, tt.want)
			}

			again := ParseHeaders(tt.block)
			if !reflect.DeepEqual(got, again) {
				t.Errorf("ParseHeaders() not idempotent: %v vs %v", got, again)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	parts, err := Split(sampleArchive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	if len(parts) != 4 {
		t.Fatalf("expected 4 parts (preamble, html, resource, trailer), got %d", len(parts))
	}
	if got := parts[1].ContentType(); got != "text/html" {
		t.Errorf("parts[1].ContentType() = %q, want text/html", got)
	}
	if got := parts[2].Headers.Get("Content-Location"); got != "a.jpg" {
		t.Errorf("parts[2] content location = %q, want a.jpg", got)
	}
}

func TestSplitCRLF(t *testing.T) {
	archive := strings.ReplaceAll(sampleArchive, "\n", "\r\n")

	parts, err := Split(archive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	body, err := FindHTML(parts)
	if err != nil {
		t.Fatalf("FindHTML() error: %v", err)
	}
	if !strings.Contains(body, "cid:a.jpg") {
		t.Errorf("html body missing expected content: %q", body)
	}
}

func TestSplitMissingBoundary(t *testing.T) {
	_, err := Split("Content-Type: text/html\n\n<html></html>")
	if !errors.Is(err, ErrNoBoundary) {
		t.Fatalf("expected ErrNoBoundary, got %v", err)
	}
}

func TestFindHTML(t *testing.T) {
	parts, err := Split(sampleArchive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	body, err := FindHTML(parts)
	if err != nil {
		t.Fatalf("FindHTML() error: %v", err)
	}

	want := `<html><body><img src="cid:a.jpg"></body></html>`
	if body != want {
		t.Errorf("FindHTML() = %q, want %q", body, want)
	}
}

func TestFindHTMLMissingPart(t *testing.T) {
	archive := "Content-Type: multipart/related; boundary=\"B\"\n" +
		"\n" +
		"--B\n" +
		"Content-Type: image/png\n" +
		"Content-Location: x.png\n" +
		"\n" +
		"data\n" +
		"--B--\n"

	parts, err := Split(archive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if _, err := FindHTML(parts); !errors.Is(err, ErrNoHTMLPart) {
		t.Fatalf("expected ErrNoHTMLPart, got %v", err)
	}
}

func TestFindHTMLEmptyBody(t *testing.T) {
	archive := "Content-Type: multipart/related; boundary=\"B\"\n" +
		"\n" +
		"--B\n" +
		"Content-Type: text/html\n" +
		"\n" +
		"\n" +
		"--B--\n"

	parts, err := Split(archive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if _, err := FindHTML(parts); !errors.Is(err, ErrNoHTMLBody) {
		t.Fatalf("expected ErrNoHTMLBody, got %v", err)
	}
}

func TestFindHTMLQuotedPrintable(t *testing.T) {
	archive := "Content-Type: multipart/related; boundary=\"B\"\n" +
		"\n" +
		"--B\n" +
		"Content-Type: text/html; charset=utf-8\n" +
		"Content-Transfer-Encoding: quoted-printable\n" +
		"\n" +
		"<p>caf=C3=A9</p>\n" +
		"--B--\n"

	parts, err := Split(archive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	body, err := FindHTML(parts)
	if err != nil {
		t.Fatalf("FindHTML() error: %v", err)
	}
	if body != "<p>café</p>" {
		t.Errorf("FindHTML() = %q, want decoded quoted-printable", body)
	}
}

func TestFindHTMLTranscodesCharset(t *testing.T) {
	// "café" with the é encoded as the single ISO-8859-1 byte 0xE9.
	archive := "Content-Type: multipart/related; boundary=\"B\"\n" +
		"\n" +
		"--B\n" +
		"Content-Type: text/html; charset=iso-8859-1\n" +
		"\n" +
		"<p>caf\xe9</p>\n" +
		"--B--\n"

	parts, err := Split(archive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	body, err := FindHTML(parts)
	if err != nil {
		t.Fatalf("FindHTML() error: %v", err)
	}
	if body != "<p>café</p>" {
		t.Errorf("FindHTML() = %q, want UTF-8 transcoded body", body)
	}
}

func TestFindHTMLUnknownCharsetPassesThrough(t *testing.T) {
	archive := "Content-Type: multipart/related; boundary=\"B\"\n" +
		"\n" +
		"--B\n" +
		"Content-Type: text/html; charset=x-no-such-charset\n" +
		"\n" +
		"<p>caf\xe9</p>\n" +
		"--B--\n"

	parts, err := Split(archive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	body, err := FindHTML(parts)
	if err != nil {
		t.Fatalf("FindHTML() error: %v", err)
	}
	if body != "<p>caf\xe9</p>" {
		t.Errorf("FindHTML() = %q, want body unchanged for unknown charset labels", body)
	}
}

func TestResources(t *testing.T) {
	parts, err := Split(sampleArchive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	resources := Resources(parts)
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}

	res := resources[0]
	if res.ContentLocation != "a.jpg" {
		t.Errorf("ContentLocation = %q, want a.jpg", res.ContentLocation)
	}
	if res.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %q, want image/jpeg", res.ContentType)
	}
	if res.TransferEncoding != "base64" {
		t.Errorf("TransferEncoding = %q, want base64", res.TransferEncoding)
	}
	if res.Body != "aGVsbG8gd29ybGQ=" {
		t.Errorf("Body = %q, want trimmed base64 payload", res.Body)
	}
}

func TestResourcesDefaultEncoding(t *testing.T) {
	archive := "Content-Type: multipart/related; boundary=\"B\"\n" +
		"\n" +
		"--B\n" +
		"Content-Type: text/css\n" +
		"Content-Location: style.css\n" +
		"\n" +
		"body { color: red }\n" +
		"--B--\n"

	parts, err := Split(archive)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	resources := Resources(parts)
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}
	if resources[0].TransferEncoding != "7bit" {
		t.Errorf("TransferEncoding = %q, want 7bit default", resources[0].TransferEncoding)
	}
}
