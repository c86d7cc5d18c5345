package domain

import (
	"slices"
	"strings"
	"time"
)

// StepKind identifies what a Step does to the snapshot it is applied to.
type StepKind string

const (
	// KindBaseImage replaces the filesystem with the contents of a base image.
	KindBaseImage StepKind = "base"
	// KindRunCommand runs a shell command against the current filesystem.
	KindRunCommand StepKind = "run"
	// KindSetEnv adds or overwrites one environment variable.
	KindSetEnv StepKind = "env"
	// KindCopyTree copies a file or directory from the build context into the filesystem.
	KindCopyTree StepKind = "copy"
	// KindSetWorkdir changes the working directory.
	KindSetWorkdir StepKind = "workdir"
	// KindInstallDependencies runs the installer command for a dependency manifest.
	KindInstallDependencies StepKind = "install"
)

// Kinds lists every known step kind in declaration order.
var Kinds = []StepKind{
	KindBaseImage,
	KindRunCommand,
	KindSetEnv,
	KindCopyTree,
	KindSetWorkdir,
	KindInstallDependencies,
}

// Valid reports whether k is a known step kind.
func (k StepKind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Label returns the upper-case instruction keyword used in human-readable output.
func (k StepKind) Label() string {
	switch k {
	case KindBaseImage:
		return "FROM"
	case KindRunCommand:
		return "RUN"
	case KindSetEnv:
		return "ENV"
	case KindCopyTree:
		return "COPY"
	case KindSetWorkdir:
		return "WORKDIR"
	case KindInstallDependencies:
		return "INSTALL"
	default:
		return strings.ToUpper(string(k))
	}
}

// IsCommand reports whether steps of this kind invoke the shell collaborator.
func (k StepKind) IsCommand() bool {
	return k == KindRunCommand || k == KindInstallDependencies
}

// EnvVar is a single environment key/value pair.
type EnvVar struct {
	Key   string
	Value string
}

// Payload carries the kind-specific arguments of a Step.
//
// Which fields are meaningful depends on the step kind:
//
//	base:    Text (image reference)
//	run:     Text (command)
//	install: Text (installer command), Manifest
//	env:     Key, Value
//	copy:    Source, Destination, Exclude
//	workdir: Text (path)
type Payload struct {
	Text        string
	Manifest    string
	Key         string
	Value       string
	Source      string
	Destination string
	Exclude     []string
}

// Step is one parsed, validated provisioning instruction.
// Steps are produced by the parser and treated as immutable afterwards.
type Step struct {
	Index   int
	Kind    StepKind
	Payload Payload
	Workdir string
	Env     []EnvVar
	Timeout time.Duration
}

// Instruction returns the canonical single-line rendering of the step.
func (s Step) Instruction() string {
	var b strings.Builder
	b.WriteString(s.Kind.Label())
	b.WriteByte(' ')

	switch s.Kind {
	case KindSetEnv:
		b.WriteString(s.Payload.Key)
		b.WriteByte('=')
		b.WriteString(s.Payload.Value)
	case KindCopyTree:
		b.WriteString(s.Payload.Source)
		b.WriteByte(' ')
		b.WriteString(s.Payload.Destination)
	case KindInstallDependencies:
		b.WriteString(s.Payload.Manifest)
		b.WriteString(" (")
		b.WriteString(s.Payload.Text)
		b.WriteByte(')')
	default:
		b.WriteString(s.Payload.Text)
	}

	return b.String()
}

// Overrides returns a copy of the step-scoped environment overrides.
func (s Step) Overrides() []EnvVar {
	return slices.Clone(s.Env)
}

// Instruction is a raw, unvalidated instruction record as read from a recipe.
type Instruction struct {
	Line        int
	Kind        string
	Image       string
	Command     string
	Manifest    string
	Path        string
	Key         string
	Value       string
	Source      string
	Destination string
	Exclude     []string
	Workdir     string
	Env         map[string]string
	Timeout     time.Duration
}

// Recipe is an ordered list of instruction records plus the location of its build context.
type Recipe struct {
	Name         string
	Path         string
	ContextDir   string
	Instructions []Instruction
}
