// Package resource decodes archive resource parts and writes them to
// the extraction directory, fanning the work out over a bounded pool.
package resource

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime/quotedprintable"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/qqmht/mht2html/model"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// typeExtensions maps known content types to their canonical file
// extension. Unknown types fall back to the subtype's final "+" token.
var typeExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

type Options struct {
	// Dir is the directory extracted files are written to. It is
	// created lazily on the first successful decode, so a conversion
	// that fails earlier leaves no directory behind.
	Dir     string
	Workers int
}

// CompletionFunc is invoked once per finished unit of work, success or
// failure. rec is only valid when err is nil.
type CompletionFunc func(res model.Resource, rec model.Record, err error)

type Extractor struct {
	dir     string
	workers int
	logger  *slog.Logger
}

func NewExtractor(opts Options, logger *slog.Logger) (*Extractor, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("resource directory is empty")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Extractor{
		dir:     opts.Dir,
		workers: workers,
		logger:  logger,
	}, nil
}

// Extract decodes one resource body and writes it under the extraction
// directory. The filename is the base name of the content location with
// any existing extension replaced by one derived from the content type.
// Distinct resources that reduce to the same filename overwrite each
// other silently.
func (e *Extractor) Extract(res model.Resource) (model.Record, error) {
	data, err := decodeBody(res.Body, res.TransferEncoding)
	if err != nil {
		return model.Record{}, fmt.Errorf("decode %s: %w", res.ContentLocation, err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return model.Record{}, fmt.Errorf("create resource directory: %w", err)
	}

	target := e.targetPath(res)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return model.Record{}, fmt.Errorf("write %s: %w", res.ContentLocation, err)
	}

	return model.Record{ContentLocation: res.ContentLocation, Path: target}, nil
}

// Run extracts every resource on the worker pool and returns the
// content-location → written-path map. The call blocks until all
// submitted work has finished; individual failures are logged, reported
// through onDone and omitted from the map.
func (e *Extractor) Run(ctx context.Context, resources []model.Resource, onDone CompletionFunc) map[string]string {
	type outcome struct {
		res model.Resource
		rec model.Record
		err error
	}

	jobs := make(chan model.Resource)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := range jobs {
				rec, err := e.Extract(res)
				select {
				case <-ctx.Done():
					return
				case results <- outcome{res: res, rec: rec, err: err}:
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, res := range resources {
			select {
			case <-ctx.Done():
				return
			case jobs <- res:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// The map is written only here, after each worker hands off its
	// outcome, so no locking is needed.
	written := make(map[string]string, len(resources))
	for out := range results {
		if onDone != nil {
			onDone(out.res, out.rec, out.err)
		}
		if out.err != nil {
			if e.logger != nil {
				e.logger.Error("resource extraction failed", "location", out.res.ContentLocation, "err", out.err)
			}
			continue
		}
		written[out.rec.ContentLocation] = out.rec.Path
	}
	return written
}

func (e *Extractor) targetPath(res model.Resource) string {
	name := path.Base(res.ContentLocation)
	name = strings.TrimSuffix(name, path.Ext(name))
	return filepath.Join(e.dir, name+"."+extensionFor(res.ContentType))
}

func extensionFor(contentType string) string {
	if ext, ok := typeExtensions[contentType]; ok {
		return ext
	}

	subtype := contentType
	if idx := strings.LastIndex(subtype, "/"); idx >= 0 {
		subtype = subtype[idx+1:]
	}
	if idx := strings.LastIndex(subtype, "+"); idx >= 0 {
		subtype = subtype[idx+1:]
	}
	return subtype
}

func decodeBody(body, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.StdEncoding.DecodeString(stripWhitespace(body))
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
	default:
		return []byte(body), nil
	}
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
