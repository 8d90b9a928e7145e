package compose

import (
	"errors"
	"io/fs"
	"os"
)

// Artifact is a composited file on local disk. It belongs to one action and
// must be released when the action is done with it.
type Artifact struct {
	Kind     Kind
	MIMEType string
	Ext      string
	Path     string
}

// Open opens the artifact for reading.
func (a *Artifact) Open() (*os.File, error) {
	return os.Open(a.Path)
}

// Release removes the backing file. Releasing twice is fine.
func (a *Artifact) Release() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
