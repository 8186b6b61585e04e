package shellenv

import "strings"

// Exact variable names admitted into the child environment.
var allowedNames = map[string]struct{}{
	"PATH":      {},
	"JAVA_HOME": {},
	"GOROOT":    {},
	"GOPATH":    {},
	"LANG":      {},
	"LC_ALL":    {},
}

// Prefixes admitted into the child environment. Tool-manager families,
// locale variants, and this product's own namespace.
var allowedPrefixes = []string{
	"NVM_",
	"PYENV_",
	"SDKMAN_",
	"CONDA_",
	"BUN_",
	"CARGO_",
	"VSCODE_",
	"GIT_",
	"ANTHROPIC_",
	"JETBRAINS_",
	"GEMINI_",
	"LC_",
	"RUST_",
	"HOSTBRIDGE_",
	"IDEA_",
}

// Allowed reports whether a variable name passes the allow-list.
func Allowed(name string) bool {
	if _, ok := allowedNames[name]; ok {
		return true
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Filter returns the subset of env that passes the allow-list. The input
// map is never modified. Filter is idempotent: applying it twice yields
// the same map as applying it once.
func Filter(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if Allowed(k) {
			out[k] = v
		}
	}
	return out
}
