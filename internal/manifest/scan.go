package manifest

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// HashDirectory recursively hashes every regular file under dir, excluding
// the reserved manifest names. Paths are returned relative to dir with
// forward slashes regardless of host OS. Symlinks are skipped and reported
// through warn (nil warn is fine; a no-op is used then). A non-existent dir
// yields an empty map and a nil error, matching a fresh install target.
func HashDirectory(dir string, warn func(format string, args ...any)) (map[string][32]byte, error) {
	if warn == nil {
		warn = func(string, ...any) {}
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return map[string][32]byte{}, nil
	}

	files := make(map[string][32]byte)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}

		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if info.Mode()&os.ModeSymlink != 0 {
			warn("skipping symlink %s", rel)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if IsReservedName(filepath.Base(p)) {
			return nil
		}

		digest, err := hashFile(p)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", rel, err)
		}
		files[rel] = digest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func hashFile(path string) ([32]byte, error) {
	var digest [32]byte

	f, err := os.Open(path)
	if err != nil {
		return digest, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return digest, err
	}
	copy(digest[:], h.Sum(nil))
	return digest, nil
}
