// Package parser turns raw recipe instructions into validated build steps.
package parser

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/strata/internal/core/domain"
)

// Parse validates records and returns one Step per record, in order.
//
// It fails with a *domain.MalformedStepError for the first record that names an unknown
// kind or lacks a required payload field. The first record must be a base step.
func Parse(records []domain.Instruction) ([]domain.Step, error) {
	steps := make([]domain.Step, 0, len(records))
	for i, rec := range records {
		step, err := parseOne(i, rec)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseOne(index int, rec domain.Instruction) (domain.Step, error) {
	kind := domain.StepKind(rec.Kind)
	fail := func(field, reason string) error {
		return &domain.MalformedStepError{
			Index:  index,
			Line:   rec.Line,
			Kind:   rec.Kind,
			Field:  field,
			Reason: reason,
		}
	}

	if !kind.Valid() {
		return domain.Step{}, fail("", "unknown step kind")
	}
	if index == 0 && kind != domain.KindBaseImage {
		return domain.Step{}, fail("", "the first step must be a base image")
	}

	payload, err := parsePayload(kind, rec, fail)
	if err != nil {
		return domain.Step{}, err
	}

	if rec.Timeout < 0 {
		return domain.Step{}, fail("timeout", "must not be negative")
	}

	env := make([]domain.EnvVar, 0, len(rec.Env))
	for _, k := range slices.Sorted(maps.Keys(rec.Env)) {
		if err := validateEnvKey(k); err != "" {
			return domain.Step{}, fail("env", err)
		}
		env = append(env, domain.EnvVar{Key: k, Value: rec.Env[k]})
	}

	return domain.Step{
		Index:   index,
		Kind:    kind,
		Payload: payload,
		Workdir: strings.TrimSpace(rec.Workdir),
		Env:     env,
		Timeout: rec.Timeout,
	}, nil
}

func parsePayload(kind domain.StepKind, rec domain.Instruction, fail func(field, reason string) error) (domain.Payload, error) {
	const required = "is required"

	switch kind {
	case domain.KindBaseImage:
		image := strings.TrimSpace(rec.Image)
		if image == "" {
			return domain.Payload{}, fail("image", required)
		}
		if _, err := domain.ParseImageRef(image); err != nil {
			return domain.Payload{}, fail("image", "invalid image reference")
		}
		return domain.Payload{Text: image}, nil

	case domain.KindRunCommand:
		if strings.TrimSpace(rec.Command) == "" {
			return domain.Payload{}, fail("command", required)
		}
		return domain.Payload{Text: rec.Command}, nil

	case domain.KindSetEnv:
		if reason := validateEnvKey(rec.Key); reason != "" {
			return domain.Payload{}, fail("key", reason)
		}
		return domain.Payload{Key: rec.Key, Value: rec.Value}, nil

	case domain.KindCopyTree:
		src, dest := strings.TrimSpace(rec.Source), strings.TrimSpace(rec.Destination)
		if src == "" {
			return domain.Payload{}, fail("source", required)
		}
		if dest == "" {
			return domain.Payload{}, fail("destination", required)
		}
		for _, pattern := range rec.Exclude {
			if _, err := filepath.Match(pattern, ""); err != nil {
				return domain.Payload{}, fail("exclude", "invalid pattern "+pattern)
			}
		}
		return domain.Payload{Source: src, Destination: dest, Exclude: slices.Clone(rec.Exclude)}, nil

	case domain.KindSetWorkdir:
		p := strings.TrimSpace(rec.Path)
		if p == "" {
			return domain.Payload{}, fail("path", required)
		}
		return domain.Payload{Text: p}, nil

	case domain.KindInstallDependencies:
		manifest := strings.TrimSpace(rec.Manifest)
		if manifest == "" {
			return domain.Payload{}, fail("manifest", required)
		}
		command := strings.TrimSpace(rec.Command)
		if command == "" {
			def, ok := domain.DefaultInstallCommand(manifest)
			if !ok {
				return domain.Payload{}, fail("command", "no default installer for "+manifest)
			}
			command = def
		}
		return domain.Payload{Text: command, Manifest: manifest}, nil
	}

	return domain.Payload{}, fail("", "unknown step kind")
}

func validateEnvKey(key string) string {
	switch {
	case key == "":
		return "is required"
	case strings.Contains(key, "="):
		return "must not contain '='"
	default:
		return ""
	}
}
