package progress

import (
	"context"
	"sync"

	"github.com/pterm/pterm"

	"github.com/qqmht/mht2html/stats"
)

// Bar manages a progress bar for tracking resource extraction. The bar
// starts lazily on the discovery event, which carries the batch size.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar that activates only at info log level.
func New(logLevel string) *Bar {
	return &Bar{enabled: logLevel == "info"}
}

// Update advances the bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeDiscovered:
		if evt.Count == 0 || b.pb != nil {
			return
		}
		pterm.Info.Printf("Resources in archive: %d\n", evt.Count)
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(evt.Count).
			WithTitle("Extracting resources").
			Start()
		b.pb = pb
		b.total = evt.Count
	case stats.EventTypeExtracted:
		if b.pb == nil {
			return
		}
		b.pb.Increment()
		if evt.Location != "" {
			displayLoc := evt.Location
			if len(displayLoc) > 40 {
				displayLoc = displayLoc[:37] + "..."
			}
			b.pb.UpdateTitle("Extracted: " + displayLoc)
		}
	case stats.EventTypeFailed:
		// Failed resources still count as finished work; show the
		// error above the bar.
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
		if b.pb != nil {
			b.pb.Increment()
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	b.pb.Stop()
}

// Subscriber consumes the event stream and drives the bar. It stops the
// bar when the stream closes at the end of a conversion.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	defer b.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}
