package domain

import (
	"maps"
	"os"
	"slices"
)

// Environment is an immutable mapping of environment variable names to values.
// Every mutating method returns a new Environment and leaves the receiver untouched.
type Environment struct {
	vars map[string]string
}

// NewEnvironment creates an Environment from the given pairs. Later pairs win.
func NewEnvironment(pairs ...EnvVar) *Environment {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		vars[p.Key] = p.Value
	}
	return &Environment{vars: vars}
}

// Len returns the number of variables.
func (e *Environment) Len() int {
	if e == nil {
		return 0
	}
	return len(e.vars)
}

// Get returns the value of key and whether it is set.
func (e *Environment) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.vars[key]
	return v, ok
}

// Set returns a copy of the environment with key set to value.
func (e *Environment) Set(key, value string) *Environment {
	next := e.clone()
	next.vars[key] = value
	return next
}

// Overlay returns a copy of the environment with all pairs applied in order.
func (e *Environment) Overlay(pairs []EnvVar) *Environment {
	next := e.clone()
	for _, p := range pairs {
		next.vars[p.Key] = p.Value
	}
	return next
}

// Expand replaces $VAR and ${VAR} references in s with values from the environment.
// Unset variables expand to the empty string.
func (e *Environment) Expand(s string) string {
	return os.Expand(s, func(key string) string {
		v, _ := e.Get(key)
		return v
	})
}

// Vars returns the variables sorted by key.
func (e *Environment) Vars() []EnvVar {
	if e == nil {
		return nil
	}
	keys := slices.Sorted(maps.Keys(e.vars))
	out := make([]EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, EnvVar{Key: k, Value: e.vars[k]})
	}
	return out
}

// Environ returns the variables as sorted "KEY=VALUE" strings.
func (e *Environment) Environ() []string {
	vars := e.Vars()
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Key+"="+v.Value)
	}
	return out
}

func (e *Environment) clone() *Environment {
	if e == nil {
		return &Environment{vars: make(map[string]string)}
	}
	return &Environment{vars: maps.Clone(e.vars)}
}
