package wordfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// maxFamilyFiles bounds the continuation scan; suffixes are two digits.
const maxFamilyFiles = 99

// FamilyFiles enumerates a state-dump family: the base path followed by every
// continuation file formed by appending a zero-padded two-digit suffix to the
// base filename, in the base file's directory.
//
// The scan stops at the first missing suffix (sequential numbering is assumed
// by the solver). A single-file family is valid; the base path is returned
// even when it does not exist, so the caller's Open reports the actual error.
//
// Parameters:
//   - basePath: Path of the family's base file
//
// Returns:
//   - []string: Paths in family order, base file first
func FamilyFiles(basePath string) []string {
	files := []string{basePath}

	if _, err := os.Stat(basePath); err != nil {
		return files
	}

	dir := filepath.Dir(basePath)
	name := filepath.Base(basePath)

	for i := 1; i <= maxFamilyFiles; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s%02d", name, i))
		if _, err := os.Stat(candidate); err != nil {
			break
		}

		files = append(files, candidate)
	}

	return files
}
