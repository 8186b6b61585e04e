package host

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// Payload locates the extension host code the child process runs.
type Payload struct {
	// Dir is the payload root.
	Dir string
	// Entry is the absolute path of the JS entry file.
	Entry string
	// ModulesDir is the absolute node_modules path.
	ModulesDir string
}

// ResolvePayload validates a payload directory and resolves its entry
// file: an explicit override wins, then the package.json "main" field,
// then index.js.
func ResolvePayload(dir, entryOverride string) (Payload, error) {
	if dir == "" {
		return Payload{}, fmt.Errorf("%w: payload dir not configured", ErrNoEntryFile)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Payload{}, fmt.Errorf("resolve payload dir: %w", err)
	}

	entry := entryOverride
	if entry == "" {
		entry = entryFromPackageJSON(abs)
	}
	if entry == "" {
		entry = "index.js"
	}
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(abs, entry)
	}

	if info, err := os.Stat(entry); err != nil || info.IsDir() {
		return Payload{}, fmt.Errorf("%w: %s", ErrNoEntryFile, entry)
	}

	modules := filepath.Join(abs, "node_modules")
	if info, err := os.Stat(modules); err != nil || !info.IsDir() {
		return Payload{}, fmt.Errorf("%w: %s", ErrNoModules, modules)
	}

	return Payload{Dir: abs, Entry: entry, ModulesDir: modules}, nil
}

// entryFromPackageJSON reads the "main" field without a full parse.
func entryFromPackageJSON(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	return gjson.GetBytes(data, "main").String()
}

// EnginesNode returns the payload's declared engines.node constraint,
// verbatim, for diagnostics. The authoritative version gate is the
// bridge's configured minimum.
func EnginesNode(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", false
	}
	v := gjson.GetBytes(data, "engines.node")
	if !v.Exists() {
		return "", false
	}
	return v.String(), true
}
