package domain

import (
	"fmt"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/zerr"
)

var (
	// ErrMalformedStep is reported by MalformedStepError.
	ErrMalformedStep = zerr.New("malformed step")

	// ErrDuplicateCommit is reported by DuplicateCommitError.
	ErrDuplicateCommit = zerr.New("fingerprint already committed with different content")

	// ErrStepExecutionFailed is reported by StepExecutionError.
	ErrStepExecutionFailed = zerr.New("step execution failed")

	// ErrBuildExecutionFailed is returned when a build aborts.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrNoRecipesSpecified is returned when a command needs at least one recipe path.
	ErrNoRecipesSpecified = zerr.New("no recipes specified")

	// ErrEmptyRecipe is returned when a recipe has no steps.
	ErrEmptyRecipe = zerr.New("recipe has no steps")

	// ErrConfigReadFailed is returned when the recipe file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read recipe file")

	// ErrConfigParseFailed is returned when the recipe file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse recipe file")

	// ErrUnsupportedVersion is returned for recipe files with an unknown version.
	ErrUnsupportedVersion = zerr.New("unsupported recipe version")

	// ErrImageNotFound is returned when a base image reference cannot be resolved.
	ErrImageNotFound = zerr.New("base image not found")

	// ErrInvalidImageReference is returned when a base image reference is malformed.
	ErrInvalidImageReference = zerr.New("invalid base image reference")

	// ErrSourceNotFound is returned when a copy source does not exist in the build context.
	ErrSourceNotFound = zerr.New("copy source not found")

	// ErrSourceOutsideContext is returned when a copy source escapes the build context.
	ErrSourceOutsideContext = zerr.New("copy source is outside the build context")

	// ErrManifestNotFound is returned when an install step's manifest is missing from the filesystem.
	ErrManifestNotFound = zerr.New("dependency manifest not found")

	// ErrNotADirectory is returned when a working directory or copy destination names a file.
	ErrNotADirectory = zerr.New("path exists and is not a directory")

	// ErrBlobNotFound is returned when a blob is missing from the content store.
	ErrBlobNotFound = zerr.New("blob not found")

	// ErrBlobCorrupted is returned when stored content does not match its digest.
	ErrBlobCorrupted = zerr.New("blob content does not match digest")

	// ErrStoreCreateFailed is returned when the store directories cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create store directory")

	// ErrStoreReadFailed is returned when a layer record cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read layer record")

	// ErrStoreWriteFailed is returned when a layer record cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write layer record")

	// ErrStoreUnmarshalFailed is returned when a layer record cannot be decoded.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal layer record")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrMaterializeFailed is returned when a tree cannot be written to disk.
	ErrMaterializeFailed = zerr.New("failed to materialize filesystem")

	// ErrCaptureFailed is returned when a directory cannot be read back into a tree.
	ErrCaptureFailed = zerr.New("failed to capture filesystem")
)

// MalformedStepError reports an instruction that names an unknown kind or lacks a
// required payload field. It is raised before any step executes.
type MalformedStepError struct {
	Index  int
	Line   int
	Kind   string
	Field  string
	Reason string
}

func (e *MalformedStepError) Error() string {
	msg := fmt.Sprintf("malformed step %d", e.Index+1)
	if e.Kind != "" {
		msg += fmt.Sprintf(" (%s)", e.Kind)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	return msg + ": " + e.Reason
}

// Is reports whether target is ErrMalformedStep.
func (e *MalformedStepError) Is(target error) bool {
	return target == ErrMalformedStep
}

// DuplicateCommitError reports a fingerprint that was already committed with a snapshot
// of different content. It signals that a step is not reproducible.
type DuplicateCommitError struct {
	Fingerprint digest.Digest
	Existing    digest.Digest
	Incoming    digest.Digest
}

func (e *DuplicateCommitError) Error() string {
	return fmt.Sprintf("duplicate commit for %s: stored content %s, new content %s",
		e.Fingerprint, e.Existing, e.Incoming)
}

// Is reports whether target is ErrDuplicateCommit.
func (e *DuplicateCommitError) Is(target error) bool {
	return target == ErrDuplicateCommit
}

// StepExecutionError reports a step that exited non-zero or hit an I/O failure.
// The layer cache is left untouched for the failing step and everything after it.
type StepExecutionError struct {
	Index       int
	Kind        StepKind
	Instruction string
	ExitCode    int
	Output      []byte
	Err         error
}

func (e *StepExecutionError) Error() string {
	msg := fmt.Sprintf("step %d [%s] failed", e.Index+1, e.Instruction)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStepExecutionFailed.
func (e *StepExecutionError) Is(target error) bool {
	return target == ErrStepExecutionFailed
}
