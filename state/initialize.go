package state

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"neon/journal"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
	}
}

// Journal opens edit journal configured by editor.journal_path once and
// returns it on subsequent calls. Without configuration or with empty path
// journal is kept in memory.
func (e *LocalEnv) Journal() (*journal.Journal, error) {
	if e.journal != nil {
		return e.journal, nil
	}
	var path string
	if e.Cfg != nil {
		path = e.Cfg.Editor.JournalPath
	}
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}
	j, err := journal.Open(path, log)
	if err != nil {
		return nil, fmt.Errorf("unable to open edit journal: %w", err)
	}
	e.journal = j
	return j, nil
}

// CloseJournal closes journal if it was opened.
func (e *LocalEnv) CloseJournal() error {
	if e.journal == nil {
		return nil
	}
	err := e.journal.Close()
	e.journal = nil
	return err
}
