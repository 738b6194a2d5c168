// Package diff computes the FileDiff between a source and target file map.
package diff

import "sort"

// FileDiff partitions keys(source) ∪ keys(target) into four disjoint sets.
type FileDiff struct {
	ToAdd     []string
	ToUpdate  []string
	ToRemove  []string
	Unchanged []string
}

// IsEmpty reports whether there is nothing to add, update, or remove.
func (d FileDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToRemove) == 0
}

// Compute builds the FileDiff between sourceFiles and targetFiles, both
// mapping a relative path to a raw SHA-256 digest. The result partitions
// keys(source) ∪ keys(target) without overlap.
func Compute(sourceFiles, targetFiles map[string][32]byte) FileDiff {
	var d FileDiff

	for relPath, srcHash := range sourceFiles {
		tgtHash, inTarget := targetFiles[relPath]
		switch {
		case !inTarget:
			d.ToAdd = append(d.ToAdd, relPath)
		case srcHash != tgtHash:
			d.ToUpdate = append(d.ToUpdate, relPath)
		default:
			d.Unchanged = append(d.Unchanged, relPath)
		}
	}

	for relPath := range targetFiles {
		if _, inSource := sourceFiles[relPath]; !inSource {
			d.ToRemove = append(d.ToRemove, relPath)
		}
	}

	sort.Strings(d.ToAdd)
	sort.Strings(d.ToUpdate)
	sort.Strings(d.ToRemove)
	sort.Strings(d.Unchanged)

	return d
}
