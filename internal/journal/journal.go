// Package journal persists the guid of a pending response across agent
// restarts.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ooblab/serclient/internal/constants"
)

// Journal is a single-line on-disk record. Write is atomic (temp file,
// fsync, rename) so a crash between Write returning and the restart always
// leaves either the previous record or the new one, never a torn line.
type Journal struct {
	dir string
}

// New creates a journal rooted at dir.
func New(dir string) *Journal {
	return &Journal{dir: dir}
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return filepath.Join(j.dir, constants.RestartFileName)
}

// Write records guid as the pending response owed after a restart.
func (j *Journal) Write(guid uuid.UUID) error {
	f, err := os.CreateTemp(j.dir, constants.RestartFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create restart journal: %w", err)
	}
	tmp := f.Name()

	if _, err := fmt.Fprintln(f, guid.String()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write restart journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync restart journal: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close restart journal: %w", err)
	}
	if err := os.Rename(tmp, j.Path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish restart journal: %w", err)
	}
	return nil
}

// Consume reads the recorded guid, removes the journal, and returns it.
// Every I/O or parse failure reads as "no pending restart".
func (j *Journal) Consume() (uuid.UUID, bool) {
	f, err := os.Open(j.Path())
	if err != nil {
		return uuid.UUID{}, false
	}

	scanner := bufio.NewScanner(f)
	var line string
	if scanner.Scan() {
		line = scanner.Text()
	}
	f.Close()
	os.Remove(j.Path())

	guid, err := uuid.Parse(line)
	if err != nil {
		return uuid.UUID{}, false
	}
	return guid, true
}
