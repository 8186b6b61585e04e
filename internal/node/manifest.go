package node

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestName is the runtime manifest file a lite distribution ships in
// its payload directory.
const ManifestName = "runtime.yaml"

// InstallerName is the offline installer script shipped by full
// distributions instead of a manifest.
const InstallerName = "install-node.sh"

// InstallerNameWindows is the offline installer used on windows.
const InstallerNameWindows = "install-node.ps1"

// Manifest describes the runtime a lite distribution downloads on demand.
//
//	version: 20.6.0
//	mirror: https://nodejs.org/dist
//	archives:
//	  linux-x64: node-v20.6.0-linux-x64.tar.gz
//	  darwin-arm64: node-v20.6.0-darwin-arm64.tar.gz
//	  win-x64: node-v20.6.0-win-x64.zip
type Manifest struct {
	Version  string            `yaml:"version"`
	Mirror   string            `yaml:"mirror"`
	Archives map[string]string `yaml:"archives"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runtime manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse runtime manifest %s: %w", path, err)
	}
	if m.Mirror == "" {
		return nil, fmt.Errorf("runtime manifest %s: missing mirror", path)
	}
	if len(m.Archives) == 0 {
		return nil, fmt.Errorf("runtime manifest %s: no archives", path)
	}
	return &m, nil
}

// FindManifest returns the manifest path inside a payload directory, or ""
// when the payload does not ship one.
func FindManifest(payloadDir string) string {
	p := filepath.Join(payloadDir, ManifestName)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// FindInstaller returns the offline installer path inside a payload
// directory for the given OS, or "" when the payload does not ship one.
func FindInstaller(payloadDir, goos string) string {
	name := InstallerName
	if goos == "windows" {
		name = InstallerNameWindows
	}
	p := filepath.Join(payloadDir, name)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// PlatformKey maps GOOS/GOARCH onto the Node.js dist naming scheme used as
// keys in Manifest.Archives.
func PlatformKey(goos, goarch string) string {
	osName := goos
	if goos == "windows" {
		osName = "win"
	}
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x64"
	case "386":
		arch = "x86"
	}
	return osName + "-" + arch
}

// ArchiveFor returns the archive filename for a platform, or ErrNoArchive.
func (m *Manifest) ArchiveFor(goos, goarch string) (string, error) {
	key := PlatformKey(goos, goarch)
	name, ok := m.Archives[key]
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %s", ErrNoArchive, key)
	}
	return name, nil
}

// ArchiveURL joins the mirror base with an archive name.
func (m *Manifest) ArchiveURL(name string) string {
	base := m.Mirror
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/" + name
}
