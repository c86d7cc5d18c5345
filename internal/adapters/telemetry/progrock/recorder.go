// Package progrock provides the Progrock implementation of the telemetry adapter.
package progrock

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/strata/internal/core/ports"
)

var _ ports.Telemetry = (*Recorder)(nil)

// Recorder implements the ports.Telemetry interface using the vito/progrock library.
// Each build step becomes one vertex, identified by its fingerprint when one is given.
// Status updates go to the writer given at construction and to every subscribed Feed.
type Recorder struct {
	out *fanout
	rec *progrock.Recorder
}

// New creates a new Recorder with a default tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a new Recorder with the given writer.
func NewRecorder(w progrock.Writer) *Recorder {
	out := &fanout{writers: []progrock.Writer{w}}
	return &Recorder{
		out: out,
		rec: progrock.NewRecorder(out),
	}
}

// Record starts recording a new vertex.
func (r *Recorder) Record(ctx context.Context, name string, opts ...ports.VertexOption) (context.Context, ports.Vertex) {
	cfg := ports.NewVertexConfig(opts...)

	d := digest.FromString(name)
	if id := digest.Digest(cfg.ID); id.Validate() == nil {
		d = id
	}

	vertex := &Vertex{vertex: r.rec.Vertex(d, name)}
	return ports.ContextWithVertex(ctx, vertex), vertex
}

// Subscribe returns a Feed that receives every status update recorded from now on.
func (r *Recorder) Subscribe() *Feed {
	feed := NewFeed()
	r.out.add(feed)
	return feed
}

// Unsubscribe stops delivering updates to feed and closes it.
func (r *Recorder) Unsubscribe(feed *Feed) {
	r.out.remove(feed)
	_ = feed.Close()
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	return r.out.Close()
}

type fanout struct {
	mu      sync.RWMutex
	writers []progrock.Writer
}

func (f *fanout) WriteStatus(update *progrock.StatusUpdate) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs error
	for _, w := range f.writers {
		errs = errors.Join(errs, w.WriteStatus(update))
	}
	return errs
}

func (f *fanout) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs error
	for _, w := range f.writers {
		errs = errors.Join(errs, w.Close())
	}
	f.writers = nil
	return errs
}

func (f *fanout) add(w progrock.Writer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writers = append(f.writers, w)
}

func (f *fanout) remove(w progrock.Writer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writers = slices.DeleteFunc(f.writers, func(x progrock.Writer) bool { return x == w })
}
