package solution

import (
	"maps"
	"os"
)

// Stamp identifies one version of a file on disk.
type Stamp struct {
	Size    int64
	ModTime int64
}

// Fingerprint maps each diagram file to its stamp. Two equal fingerprints
// mean the set of diagram files and their contents did not observably change.
type Fingerprint map[string]Stamp

// Equal compares two fingerprints.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return maps.Equal(f, other)
}

// Fingerprint stamps the diagram files currently under root.
func (a *Aggregator) Fingerprint(root string) (Fingerprint, error) {
	paths, _, err := a.Discover(root)
	if err != nil {
		return nil, err
	}
	return StampFiles(paths), nil
}

// StampFiles stamps the given files. Files that vanished are left out.
func StampFiles(paths []string) Fingerprint {
	fp := make(Fingerprint, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		fp[p] = Stamp{Size: info.Size(), ModTime: info.ModTime().UnixNano()}
	}
	return fp
}
