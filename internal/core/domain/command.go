package domain

// DefaultPath is set by a base step when the environment has no PATH yet.
const DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// DefaultShell is the interpreter used for run and install steps.
var DefaultShell = []string{"/bin/sh", "-c"}

// Command is a request to the shell collaborator.
type Command struct {
	Script string
	Shell  []string
	Dir    string
	Env    []string
}

// CommandResult is what the shell collaborator reports back.
type CommandResult struct {
	ExitCode int
	Output   []byte
}

// Succeeded reports whether the command exited with status zero.
func (r CommandResult) Succeeded() bool {
	return r.ExitCode == 0
}
