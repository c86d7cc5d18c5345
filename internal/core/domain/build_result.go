package domain

import (
	"time"

	"github.com/opencontainers/go-digest"
)

// StepRecord is the outcome of one step within a build.
type StepRecord struct {
	Index       int
	Kind        StepKind
	Instruction string
	Fingerprint digest.Digest
	Status      StepStatus
	Cached      bool
	Duration    time.Duration
}

// BuildResult describes a finished or aborted build.
type BuildResult struct {
	ID         string
	Recipe     string
	Steps      []StepRecord
	Final      *Snapshot
	Executions int
}

// Fingerprints returns the fingerprint chain of all committed steps in order.
func (r *BuildResult) Fingerprints() []digest.Digest {
	out := make([]digest.Digest, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Status == StepStatusCommitted {
			out = append(out, s.Fingerprint)
		}
	}
	return out
}

// Succeeded reports whether every step committed.
func (r *BuildResult) Succeeded() bool {
	for _, s := range r.Steps {
		if s.Status != StepStatusCommitted {
			return false
		}
	}
	return true
}

// PlanEntry is one step of a computed fingerprint chain.
type PlanEntry struct {
	Index       int
	Kind        StepKind
	Instruction string
	Fingerprint digest.Digest
	Cached      bool
}
