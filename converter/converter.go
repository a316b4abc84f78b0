// Package converter drives the conversion pipeline: read, split, parse,
// placeholder substitution, style dedup, concurrent resource extraction,
// reference rewrite, stylesheet injection, serialize, write.
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/qqmht/mht2html/config"
	"github.com/qqmht/mht2html/htmldoc"
	"github.com/qqmht/mht2html/mht"
	"github.com/qqmht/mht2html/model"
	"github.com/qqmht/mht2html/resource"
	"github.com/qqmht/mht2html/stats"
	"github.com/qqmht/mht2html/transform"
)

type Converter struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	subsMu sync.RWMutex
	subs   []chan stats.Event

	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeEventsOnce sync.Once
}

func New(cfg config.Config, logger *slog.Logger) *Converter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Converter{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Converter) Config() config.Config {
	return c.cfg
}

func (c *Converter) Context() context.Context {
	return c.ctx
}

// SubscribeStats registers a consumer of the event stream. Every
// subscriber receives every event on its own channel. Subscriptions
// must be made before Run is called.
func (c *Converter) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	ch := make(chan stats.Event, 128)

	c.subsMu.Lock()
	c.subs = append(c.subs, ch)
	c.subsMu.Unlock()

	c.statsWG.Add(1)
	go func() {
		defer c.statsWG.Done()
		if err := fn(c.ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			c.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

// EmitEvent broadcasts evt to every subscriber.
func (c *Converter) EmitEvent(evt stats.Event) {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	for _, ch := range c.subs {
		select {
		case <-c.ctx.Done():
			return
		case ch <- evt:
		}
	}
}

// Run executes the pipeline and blocks until it and all event
// subscribers have finished. Teardown happens exactly once regardless
// of outcome.
func (c *Converter) Run() error {
	started := time.Now()

	err := c.convert()

	c.closeEvents()
	c.statsWG.Wait()
	c.cancel()

	if err == nil {
		c.errMu.Lock()
		err = c.err
		c.errMu.Unlock()
	}

	duration := time.Since(started)
	if err != nil {
		c.logger.Error("conversion failed", "duration", duration, "err", err)
		return err
	}

	c.logger.Info("conversion completed", "output", c.cfg.OutputPath, "duration", duration)
	return nil
}

func (c *Converter) convert() error {
	raw, err := os.ReadFile(c.cfg.InputPath)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	parts, err := mht.Split(string(raw))
	if err != nil {
		return fmt.Errorf("split archive: %w", err)
	}
	c.logger.Debug("archive split", "parts", len(parts))

	body, err := mht.FindHTML(parts)
	if err != nil {
		return fmt.Errorf("locate html document: %w", err)
	}

	doc, err := htmldoc.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse html document: %w", err)
	}

	replaced := transform.ReplaceEmptyMessages(doc)
	c.EmitEvent(stats.Event{Stage: stats.StageTransform, Type: stats.EventTypeReplaced, Count: replaced})
	c.logger.Debug("empty messages replaced", "count", replaced)

	deduper := transform.NewStyleDeduper()
	styled := deduper.Apply(doc)
	c.EmitEvent(stats.Event{Stage: stats.StageTransform, Type: stats.EventTypeStyled, Count: styled})
	c.logger.Debug("inline styles hoisted", "count", styled)

	resources := mht.Resources(parts)
	c.EmitEvent(stats.Event{Stage: stats.StageSplit, Type: stats.EventTypeDiscovered, Count: len(resources)})

	outputDir := filepath.Dir(c.cfg.OutputPath)
	extractor, err := resource.NewExtractor(resource.Options{
		Dir:     filepath.Join(outputDir, c.cfg.ResourceDir),
		Workers: c.cfg.Workers,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("resource extractor: %w", err)
	}

	written := extractor.Run(c.ctx, resources, func(res model.Resource, rec model.Record, err error) {
		if err != nil {
			c.EmitEvent(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeFailed, Location: res.ContentLocation, Err: err})
			return
		}
		c.EmitEvent(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeExtracted, Location: rec.ContentLocation})
		c.logger.Debug("resource extracted", "location", rec.ContentLocation, "path", rec.Path)
	})

	rewritten := transform.RewriteReferences(doc, written, outputDir)
	c.EmitEvent(stats.Event{Stage: stats.StageTransform, Type: stats.EventTypeRewritten, Count: rewritten})
	c.logger.Debug("references rewritten", "count", rewritten)

	transform.InjectStylesheet(doc, deduper.Stylesheet())

	out, err := os.Create(c.cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := htmldoc.Render(out, doc); err != nil {
		_ = out.Close()
		return fmt.Errorf("serialize html: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	return nil
}

func (c *Converter) closeEvents() {
	c.closeEventsOnce.Do(func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		for _, ch := range c.subs {
			close(ch)
		}
	})
}

func (c *Converter) fail(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
		c.cancel()
	}
	c.errMu.Unlock()
}
