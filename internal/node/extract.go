package node

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// extractTarGz unpacks a Node.js dist tarball into targetDir, stripping the
// single top-level directory the archives carry (node-vX.Y.Z-os-arch/).
// Entries that would escape targetDir are rejected.
func extractTarGz(r io.Reader, targetDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		name := strings.ReplaceAll(hdr.Name, "\\", "/")
		if name == "pax_global_header" || strings.HasPrefix(path.Base(name), "._") {
			continue
		}

		// Everything in a dist archive lives under one wrapper directory.
		// Drop that component; the bare wrapper entry itself has no remainder.
		slash := strings.Index(name, "/")
		if slash < 0 {
			continue
		}
		rel := strings.Trim(name[slash+1:], "/")
		if rel == "" {
			continue
		}

		dest, err := secureJoin(targetDir, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", rel, err)
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("extract %s: %w", rel, err)
			}
		case tar.TypeSymlink:
			// Node tarballs link npm/npx into lib/. Reject links that
			// point outside the install root.
			if _, err := secureJoin(filepath.Dir(dest), hdr.Linkname); err != nil {
				return fmt.Errorf("symlink %s: %w", rel, err)
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("extract %s: %w", rel, err)
			}
			_ = os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return fmt.Errorf("extract symlink %s: %w", rel, err)
			}
		}
	}
	return nil
}

// extractZip unpacks a Node.js dist zip (windows archives) into targetDir,
// stripping the top-level directory.
func extractZip(archivePath, targetDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip %s: %w", archivePath, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		slash := strings.Index(name, "/")
		if slash < 0 {
			continue
		}
		rel := strings.Trim(name[slash+1:], "/")
		if rel == "" {
			continue
		}

		dest, err := secureJoin(targetDir, rel)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", rel, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", rel, err)
		}
		err = writeFile(dest, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return fmt.Errorf("extract %s: %w", rel, err)
		}
	}
	return nil
}

// secureJoin joins rel under root and fails when the result escapes root.
func secureJoin(root, rel string) (string, error) {
	dest := filepath.Join(root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(root)
	if dest != cleanRoot && !strings.HasPrefix(dest, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry escapes target dir: %q", rel)
	}
	return dest, nil
}

func writeFile(dest string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
