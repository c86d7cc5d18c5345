package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"go.trai.ch/strata/internal/core/domain"
)

func TestMalformedStepError(t *testing.T) {
	err := &domain.MalformedStepError{Index: 2, Line: 14, Kind: "copy", Field: "dest", Reason: "is required"}

	assert.Equal(t, "malformed step 3 (copy) at line 14: dest: is required", err.Error())
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), domain.ErrMalformedStep)
}

func TestDuplicateCommitError(t *testing.T) {
	err := &domain.DuplicateCommitError{
		Fingerprint: digest.FromString("fp"),
		Existing:    digest.FromString("a"),
		Incoming:    digest.FromString("b"),
	}

	assert.ErrorIs(t, err, domain.ErrDuplicateCommit)
	assert.Contains(t, err.Error(), digest.FromString("fp").String())
}

func TestStepExecutionError(t *testing.T) {
	cause := errors.New("boom")
	err := &domain.StepExecutionError{Index: 0, Instruction: "RUN exit 1", ExitCode: 1, Err: cause}

	assert.Equal(t, "step 1 [RUN exit 1] failed with exit code 1: boom", err.Error())
	assert.ErrorIs(t, err, domain.ErrStepExecutionFailed)
	assert.ErrorIs(t, err, cause)

	var target *domain.StepExecutionError
	assert.ErrorAs(t, fmt.Errorf("build: %w", err), &target)
	assert.Equal(t, 1, target.ExitCode)
}
