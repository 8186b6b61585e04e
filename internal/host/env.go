package host

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvSessionID carries the supervisor's session id into the child.
const EnvSessionID = "HOSTBRIDGE_SESSION_ID"

// ProxyConfig is handed to the child only where the environment does not
// already define the variable.
type ProxyConfig struct {
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// envBuilder accumulates KEY=VALUE pairs preserving first-seen key order,
// so the child environment stays stable across launches.
type envBuilder struct {
	keys []string
	vals map[string]string
}

func newEnvBuilder(base []string) *envBuilder {
	b := &envBuilder{vals: make(map[string]string, len(base))}
	for _, kv := range base {
		eq := strings.Index(kv, "=")
		if eq <= 0 {
			continue
		}
		b.Set(kv[:eq], kv[eq+1:])
	}
	return b
}

// Set stores the value, overwriting any previous one.
func (b *envBuilder) Set(key, value string) {
	if _, ok := b.vals[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.vals[key] = value
}

// SetIfAbsent stores the value only when the key is not already present.
func (b *envBuilder) SetIfAbsent(key, value string) {
	if _, ok := b.vals[key]; ok {
		return
	}
	b.Set(key, value)
}

// Get returns the stored value.
func (b *envBuilder) Get(key string) (string, bool) {
	v, ok := b.vals[key]
	return v, ok
}

// pathKey returns the key actually holding PATH. Windows environments
// often spell it "Path".
func (b *envBuilder) pathKey() string {
	for _, k := range b.keys {
		if strings.EqualFold(k, "PATH") {
			return k
		}
	}
	return "PATH"
}

// List renders the accumulated pairs.
func (b *envBuilder) List() []string {
	out := make([]string, 0, len(b.keys))
	for _, k := range b.keys {
		out = append(out, k+"="+b.vals[k])
	}
	return out
}

// devToolDirs returns common developer tool directories that exist on
// this machine. They slot between the runtime dir and the inherited PATH.
func devToolDirs() []string {
	if runtime.GOOS == "windows" {
		return nil
	}
	candidates := []string{"/usr/local/bin", "/opt/homebrew/bin"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "bin"))
	}
	var dirs []string
	for _, d := range candidates {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// BuildEnv assembles the child environment:
//
//  1. the parent process environment,
//  2. the allow-listed shell snapshot merged over it,
//  3. PATH rebuilt as runtime dir, existing developer tool dirs, then the
//     PATH from step 2, so the resolved runtime always wins over whatever
//     node the inherited PATH would find,
//  4. transport variables,
//  5. the session id,
//  6. proxy settings, never overriding values already present.
func BuildEnv(base []string, snapshot map[string]string, runtimeDir string, transport Transport, sessionID string, proxy ProxyConfig) []string {
	b := newEnvBuilder(base)

	for k, v := range snapshot {
		b.Set(k, v)
	}

	pk := b.pathKey()
	parts := []string{runtimeDir}
	parts = append(parts, devToolDirs()...)
	if orig, ok := b.Get(pk); ok && orig != "" {
		parts = append(parts, orig)
	}
	b.Set(pk, strings.Join(parts, string(os.PathListSeparator)))

	if transport != nil {
		for _, kv := range transport.Env() {
			if eq := strings.Index(kv, "="); eq > 0 {
				b.Set(kv[:eq], kv[eq+1:])
			}
		}
	}

	if sessionID != "" {
		b.Set(EnvSessionID, sessionID)
	}

	if proxy.HTTPProxy != "" {
		b.SetIfAbsent("HTTP_PROXY", proxy.HTTPProxy)
		b.SetIfAbsent("http_proxy", proxy.HTTPProxy)
	}
	if proxy.HTTPSProxy != "" {
		b.SetIfAbsent("HTTPS_PROXY", proxy.HTTPSProxy)
		b.SetIfAbsent("https_proxy", proxy.HTTPSProxy)
	}
	if proxy.NoProxy != "" {
		b.SetIfAbsent("NO_PROXY", proxy.NoProxy)
		b.SetIfAbsent("no_proxy", proxy.NoProxy)
	}

	return b.List()
}
