package domain

import "path"

// defaultInstallers maps well-known manifest file names to the command that installs them.
var defaultInstallers = map[string]func(manifest string) string{
	"requirements.txt": func(m string) string { return "pip install -r " + m },
	"package.json":     func(string) string { return "npm install" },
	"go.mod":           func(string) string { return "go mod download" },
	"Gemfile":          func(string) string { return "bundle install" },
	"Cargo.toml":       func(string) string { return "cargo fetch" },
}

// DefaultInstallCommand returns the installer command for a manifest based on its file name.
func DefaultInstallCommand(manifest string) (string, bool) {
	build, ok := defaultInstallers[path.Base(manifest)]
	if !ok {
		return "", false
	}
	return build(manifest), true
}
