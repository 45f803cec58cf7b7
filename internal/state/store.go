package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LastUpdatedKey is the reserved snapshot key stamped on every save.
const LastUpdatedKey = "last_updated"

const processedFileName = "processed_entries.json"

// Store keeps workflow snapshots and processed-entry sets as JSON files
// under a state directory. Files are rewritten whole on every mutation;
// single-process, single-writer use only.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating state directory: %w", err)
	}

	return &Store{
		dir: dir,
		now: time.Now,
	}, nil
}

func (s *Store) workflowPath(workflow string) string {
	return filepath.Join(s.dir, strings.ToLower(workflow)+"_last_run.json")
}

// SaveWorkflowState persists a workflow's run state, stamping it with the
// current time under LastUpdatedKey. Any previous snapshot is overwritten.
func (s *Store) SaveWorkflowState(workflow string, st map[string]interface{}) error {
	if st == nil {
		st = map[string]interface{}{}
	}
	st[LastUpdatedKey] = s.now().Format(time.RFC3339)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing workflow state: %w", err)
	}

	if err := os.WriteFile(s.workflowPath(workflow), data, 0644); err != nil {
		return fmt.Errorf("error saving workflow state: %w", err)
	}

	return nil
}

// LoadWorkflowState returns the last saved snapshot for a workflow, or nil
// if none exists.
func (s *Store) LoadWorkflowState(workflow string) (map[string]interface{}, error) {
	data, err := os.ReadFile(s.workflowPath(workflow))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading workflow state: %w", err)
	}

	var st map[string]interface{}
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("error deserializing workflow state: %w", err)
	}

	return st, nil
}

func (s *Store) processedPath() string {
	return filepath.Join(s.dir, processedFileName)
}

func (s *Store) loadProcessed() (map[string][]string, error) {
	data, err := os.ReadFile(s.processedPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("error reading processed entries: %w", err)
	}

	var processed map[string][]string
	if err := json.Unmarshal(data, &processed); err != nil {
		return nil, fmt.Errorf("error deserializing processed entries: %w", err)
	}
	if processed == nil {
		processed = map[string][]string{}
	}

	return processed, nil
}

func (s *Store) saveProcessed(processed map[string][]string) error {
	data, err := json.MarshalIndent(processed, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing processed entries: %w", err)
	}

	if err := os.WriteFile(s.processedPath(), data, 0644); err != nil {
		return fmt.Errorf("error saving processed entries: %w", err)
	}

	return nil
}

// MarkEntryProcessed records an entry ID under a database name so re-runs
// skip it. Marking an already-present entry is a no-op.
func (s *Store) MarkEntryProcessed(dbName, entryID string) error {
	processed, err := s.loadProcessed()
	if err != nil {
		return err
	}

	for _, id := range processed[dbName] {
		if id == entryID {
			return nil
		}
	}
	processed[dbName] = append(processed[dbName], entryID)

	return s.saveProcessed(processed)
}

// IsEntryProcessed reports whether an entry was already processed. Unknown
// database names simply report false.
func (s *Store) IsEntryProcessed(dbName, entryID string) (bool, error) {
	processed, err := s.loadProcessed()
	if err != nil {
		return false, err
	}

	for _, id := range processed[dbName] {
		if id == entryID {
			return true, nil
		}
	}
	return false, nil
}

// ProcessedEntries returns the processed entry IDs for a database, in
// insertion order. Unknown database names return an empty list.
func (s *Store) ProcessedEntries(dbName string) ([]string, error) {
	processed, err := s.loadProcessed()
	if err != nil {
		return nil, err
	}
	return processed[dbName], nil
}

// ClearProcessedEntries forgets the processed set for one database, or for
// all databases when dbName is empty.
func (s *Store) ClearProcessedEntries(dbName string) error {
	processed, err := s.loadProcessed()
	if err != nil {
		return err
	}

	if dbName == "" {
		processed = map[string][]string{}
	} else if _, ok := processed[dbName]; ok {
		processed[dbName] = []string{}
	} else {
		return nil
	}

	return s.saveProcessed(processed)
}

// Databases returns the database names that have processed entries recorded.
func (s *Store) Databases() ([]string, error) {
	processed, err := s.loadProcessed()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(processed))
	for name := range processed {
		names = append(names, name)
	}
	return names, nil
}
