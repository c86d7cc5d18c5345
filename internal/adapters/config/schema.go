package config

import (
	"slices"
	"strings"
	"time"

	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Recipefile represents the structure of the strata.yaml recipe file.
type Recipefile struct {
	Version string    `yaml:"version"`
	Name    string    `yaml:"name"`
	Context string    `yaml:"context"`
	Steps   []StepDTO `yaml:"steps"`
}

// primaryKeys name a step kind on their own. "env" and "workdir" name a kind only when
// no primary key is present; otherwise they are step-scoped overrides.
var primaryKeys = []string{"from", "run", "copy", "install"}

var knownKeys = []string{"from", "run", "copy", "install", "env", "workdir", "timeout"}

// StepDTO is one entry of the steps list. It decodes into a domain.Instruction.
type StepDTO struct {
	Instruction domain.Instruction
}

// EnvDTO is the payload of an env step.
type EnvDTO struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// CopyDTO is the payload of a copy step.
type CopyDTO struct {
	Src     string   `yaml:"src"`
	Dest    string   `yaml:"dest"`
	Exclude []string `yaml:"exclude"`
}

// InstallDTO is the long form of an install step.
type InstallDTO struct {
	Manifest string `yaml:"manifest"`
	Command  string `yaml:"command"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StepDTO) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return zerr.With(zerr.New("step must be a mapping"), "line", node.Line)
	}

	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	var primaries, secondaries []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !slices.Contains(knownKeys, key) {
			return zerr.With(zerr.With(zerr.New("unknown step field"), "field", key), "line", node.Content[i].Line)
		}
		fields[key] = node.Content[i+1]
		switch {
		case slices.Contains(primaryKeys, key):
			primaries = append(primaries, key)
		case key == "env" || key == "workdir":
			secondaries = append(secondaries, key)
		}
	}

	ins := domain.Instruction{Line: node.Line}

	switch {
	case len(primaries) > 1:
		// Reported by the parser as an unknown kind.
		ins.Kind = strings.Join(primaries, "+")
	case len(primaries) == 1:
		ins.Kind = kindFor(primaries[0])
		if err := decodePrimary(&ins, primaries[0], fields[primaries[0]]); err != nil {
			return err
		}
		if err := decodeOverrides(&ins, fields); err != nil {
			return err
		}
	case len(secondaries) > 1:
		// Without a primary key both name a kind, so the record is ambiguous.
		ins.Kind = strings.Join(secondaries, "+")
	case fields["workdir"] != nil:
		ins.Kind = string(domain.KindSetWorkdir)
		if err := fields["workdir"].Decode(&ins.Path); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid workdir"), "line", node.Line)
		}
	case fields["env"] != nil:
		ins.Kind = string(domain.KindSetEnv)
		var env EnvDTO
		if err := fields["env"].Decode(&env); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid env"), "line", node.Line)
		}
		ins.Key, ins.Value = env.Key, env.Value
	}

	if t := fields["timeout"]; t != nil {
		var raw string
		if err := t.Decode(&raw); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid timeout"), "line", t.Line)
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "invalid timeout"), "line", t.Line)
		}
		ins.Timeout = d
	}

	s.Instruction = ins
	return nil
}

func kindFor(key string) string {
	switch key {
	case "from":
		return string(domain.KindBaseImage)
	case "run":
		return string(domain.KindRunCommand)
	case "copy":
		return string(domain.KindCopyTree)
	case "install":
		return string(domain.KindInstallDependencies)
	default:
		return key
	}
}

func decodePrimary(ins *domain.Instruction, key string, value *yaml.Node) error {
	var err error
	switch key {
	case "from":
		err = value.Decode(&ins.Image)
	case "run":
		err = value.Decode(&ins.Command)
	case "copy":
		err = decodeCopy(ins, value)
	case "install":
		err = decodeInstall(ins, value)
	}
	if err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, "invalid step payload"), "field", key), "line", value.Line)
	}
	return nil
}

// decodeCopy accepts either "src dest" or a {src, dest, exclude} mapping.
func decodeCopy(ins *domain.Instruction, value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parts := strings.Fields(value.Value)
		if len(parts) > 0 {
			ins.Source = parts[0]
		}
		if len(parts) > 1 {
			ins.Destination = parts[1]
		}
		if len(parts) > 2 {
			return zerr.New("copy takes a source and a destination")
		}
		return nil
	}
	var c CopyDTO
	if err := value.Decode(&c); err != nil {
		return err
	}
	ins.Source, ins.Destination, ins.Exclude = c.Src, c.Dest, c.Exclude
	return nil
}

// decodeInstall accepts either a manifest path or a {manifest, command} mapping.
func decodeInstall(ins *domain.Instruction, value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&ins.Manifest)
	}
	var i InstallDTO
	if err := value.Decode(&i); err != nil {
		return err
	}
	ins.Manifest, ins.Command = i.Manifest, i.Command
	return nil
}

func decodeOverrides(ins *domain.Instruction, fields map[string]*yaml.Node) error {
	if w := fields["workdir"]; w != nil {
		if err := w.Decode(&ins.Workdir); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid workdir override"), "line", w.Line)
		}
	}
	if env := fields["env"]; env != nil {
		if err := env.Decode(&ins.Env); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid env overrides"), "line", env.Line)
		}
	}
	return nil
}
