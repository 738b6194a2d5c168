package manifest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/patchloop/patchloop/internal/sandbox"
)

// Read parses and validates a manifest.json file at path.
//
// Rejects: missing/unreadable file, invalid JSON, root not an
// object, missing or non-string version, null version, unparseable version,
// missing or non-string app_exe, missing or non-object files, any non-string
// hash value, min_version > version. Silently ignores: unknown top-level
// fields, non-string or unparseable min_version (treated as absent).
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("reading file: %v", err)}
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &ParseError{Path: path, Reason: "root is not a JSON object"}
	}

	m := &Manifest{}

	versionRaw, present := obj["version"]
	if !present {
		return nil, &ParseError{Path: path, Reason: "missing 'version'"}
	}
	if versionRaw == nil {
		return nil, &ParseError{Path: path, Reason: "'version' is null"}
	}
	versionStr, ok := versionRaw.(string)
	if !ok {
		return nil, &ParseError{Path: path, Reason: "'version' is not a string"}
	}
	ver, err := semver.NewVersion(versionStr)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("'version' is not parseable: %v", err)}
	}
	m.Version = ver

	appExeRaw, present := obj["app_exe"]
	if !present {
		return nil, &ParseError{Path: path, Reason: "missing 'app_exe'"}
	}
	appExe, ok := appExeRaw.(string)
	if !ok {
		return nil, &ParseError{Path: path, Reason: "'app_exe' is not a string"}
	}
	if appExe != "" {
		if err := validateRelPath(appExe); err != nil {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("'app_exe': %v", err)}
		}
	}
	m.AppExe = appExe

	filesRaw, present := obj["files"]
	if !present {
		return nil, &ParseError{Path: path, Reason: "missing 'files'"}
	}
	filesObj, ok := filesRaw.(map[string]any)
	if !ok {
		return nil, &ParseError{Path: path, Reason: "'files' is not an object"}
	}

	files := make(map[string][32]byte, len(filesObj))
	for relPath, hashRaw := range filesObj {
		hashStr, ok := hashRaw.(string)
		if !ok {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("'files[%s]' is not a string", relPath)}
		}
		if err := validateRelPath(relPath); err != nil {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("'files[%s]': %v", relPath, err)}
		}
		decoded, err := base64.StdEncoding.DecodeString(hashStr)
		if err != nil {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("'files[%s]' is not valid base64: %v", relPath, err)}
		}
		if len(decoded) != 32 {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("'files[%s]' hash is %d bytes, want 32", relPath, len(decoded))}
		}
		var digest [32]byte
		copy(digest[:], decoded)
		files[relPath] = digest
	}
	m.Files = files

	// min_version: silently ignored unless it is a well-formed string that
	// parses as a version.
	if minRaw, present := obj["min_version"]; present {
		if minStr, ok := minRaw.(string); ok {
			if minVer, err := semver.NewVersion(minStr); err == nil {
				if minVer.GreaterThan(ver) {
					return nil, &ParseError{Path: path, Reason: "'min_version' is greater than 'version'"}
				}
				m.MinVersion = minVer
			}
		}
	}

	return m, nil
}

// validateRelPath rejects absolute paths, backslashes, and paths
// containing a ".." segment. Backslashes are rejected outright rather than
// treated as a separator: on Windows filepath.Join treats them as path
// separators, so a manifest entry like "..\\..\\evil.exe" would otherwise
// slip past a forward-slash-only traversal check and resolve outside
// TargetDir once joined.
func validateRelPath(relPath string) error {
	if relPath == "" {
		return fmt.Errorf("empty relative path")
	}
	if strings.Contains(relPath, "\\") {
		return fmt.Errorf("backslash not allowed")
	}
	if path.IsAbs(relPath) || strings.HasPrefix(relPath, "/") {
		return fmt.Errorf("absolute path not allowed")
	}
	for _, seg := range strings.Split(relPath, "/") {
		if seg == ".." {
			return fmt.Errorf("'..' segment not allowed")
		}
	}
	return nil
}

// Write serializes m to path atomically through sandbox.AtomicWriteFile:
// the JSON goes to a uniquely named temp file in path's directory, which is
// synced and then renamed over path. The reserved <path>.tmp name is not
// used. On failure the temp file is removed, any existing file at path is
// left as it was, and an error is returned.
//
// A Manifest with a nil Version produces an unreadable file (detectable by
// a subsequent Read).
func Write(path string, m *Manifest) error {
	payload := map[string]any{
		"app_exe": m.AppExe,
		"files":   encodeFiles(m.Files),
	}
	if m.Version != nil {
		payload["version"] = m.Version.Original()
	} else {
		payload["version"] = nil
	}
	if m.MinVersion != nil {
		payload["min_version"] = m.MinVersion.Original()
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	return sandbox.AtomicWriteFile(path, data, 0644)
}

func encodeFiles(files map[string][32]byte) map[string]string {
	out := make(map[string]string, len(files))
	for relPath, digest := range files {
		out[relPath] = base64.StdEncoding.EncodeToString(digest[:])
	}
	return out
}
