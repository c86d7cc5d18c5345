package domain

import (
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"
)

// RootStep is the step index recorded on the root snapshot.
const RootStep = -1

// Snapshot is the immutable filesystem and environment state after applying a prefix of steps.
// Snapshots are never mutated after creation; deriving a child copies what it changes.
type Snapshot struct {
	Fingerprint digest.Digest
	Parent      digest.Digest
	Step        int
	Kind        StepKind
	Instruction string
	Tree        *Tree
	Env         *Environment
	Workdir     string
	CreatedAt   time.Time
}

// RootSnapshot returns the implicit starting snapshot: empty filesystem, empty environment
// and an undefined working directory.
func RootSnapshot() *Snapshot {
	return &Snapshot{
		Step: RootStep,
		Tree: EmptyTree(),
		Env:  NewEnvironment(),
	}
}

// IsRoot reports whether s is the root snapshot.
func (s *Snapshot) IsRoot() bool {
	return s.Step == RootStep && s.Fingerprint == ""
}

// EffectiveWorkdir returns the working directory, defaulting to "/" while undefined.
func (s *Snapshot) EffectiveWorkdir() string {
	if s.Workdir == "" {
		return RootPath
	}
	return s.Workdir
}

// ContentDigest hashes the state the snapshot represents: filesystem, environment and
// working directory. Two snapshots with equal content digests are interchangeable.
func (s *Snapshot) ContentDigest() digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()
	_, _ = fmt.Fprintf(h, "tree\x00%s\x00", s.Tree.Digest())
	for _, v := range s.Env.Vars() {
		_, _ = fmt.Fprintf(h, "env\x00%s\x00%s\x00", v.Key, v.Value)
	}
	_, _ = fmt.Fprintf(h, "workdir\x00%s\x00", s.Workdir)
	return d.Digest()
}

// Derive returns a child snapshot of s produced by step. The child starts with the
// parent's state; callers replace Tree, Env or Workdir on the returned value before
// handing it out.
func (s *Snapshot) Derive(step Step, fp digest.Digest, now time.Time) *Snapshot {
	return &Snapshot{
		Fingerprint: fp,
		Parent:      s.Fingerprint,
		Step:        step.Index,
		Kind:        step.Kind,
		Instruction: step.Instruction(),
		Tree:        s.Tree,
		Env:         s.Env,
		Workdir:     s.Workdir,
		CreatedAt:   now,
	}
}
