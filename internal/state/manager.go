package state

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	jsoniter "github.com/json-iterator/go"

	"github.com/tracertea/certidao/internal/batch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	journalFileName = "issued.json"
	lockFileName    = ".lock"
	journalVersion  = "1.0"
)

// Journal is the persisted record of identifiers already issued.
type Journal struct {
	Version     string                      `json:"version"`
	LastUpdated time.Time                   `json:"last_updated"`
	Issued      map[batch.Identifier]Record `json:"issued"`
}

// Record describes one successful issuance.
type Record struct {
	IssuedAt time.Time `json:"issued_at"`
	Duration string    `json:"duration"`
}

// Manager owns the output directory lock and the issuance journal.
type Manager struct {
	lock        *flock.Flock
	journalPath string
	logger      *slog.Logger

	mu      sync.Mutex
	journal *Journal
}

// NewManager creates the output directory, acquires its file lock and
// loads the journal. It returns an error if the lock is already held.
func NewManager(outputDir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create output directory %s: %w", outputDir, err)
	}

	lockPath := filepath.Join(outputDir, lockFileName)
	fileLock := flock.New(lockPath)

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("could not acquire file lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("output directory %s is locked by another certidao instance", outputDir)
	}
	logger.Info("Acquired file lock.", "path", lockPath)

	m := &Manager{
		lock:        fileLock,
		journalPath: filepath.Join(outputDir, journalFileName),
		logger:      logger,
	}
	if err := m.load(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	m.journal = &Journal{Version: journalVersion, Issued: make(map[batch.Identifier]Record)}

	data, err := os.ReadFile(m.journalPath)
	if os.IsNotExist(err) {
		m.logger.Info("Journal not found, starting empty.", "path", m.journalPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read journal: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var loaded Journal
	if err := json.Unmarshal(data, &loaded); err != nil {
		backup := m.journalPath + ".corrupted." + time.Now().Format("20060102-150405")
		if werr := os.WriteFile(backup, data, 0644); werr != nil {
			return fmt.Errorf("journal is corrupted and could not be backed up: %w", err)
		}
		m.logger.Warn("Journal corrupted, starting empty.", "backup", backup, "error", err)
		return nil
	}
	if loaded.Issued != nil {
		m.journal.Issued = loaded.Issued
	}
	m.logger.Info("Journal loaded.", "issued", len(m.journal.Issued))
	return nil
}

// IsIssued reports whether id was issued in a previous run.
func (m *Manager) IsIssued(id batch.Identifier) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.journal.Issued[id]
	return ok
}

// IssuedCount returns the number of identifiers in the journal.
func (m *Manager) IssuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journal.Issued)
}

// Filter returns ids without those already issued, keeping order.
func (m *Manager) Filter(ids []batch.Identifier) (pending []batch.Identifier, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending = make([]batch.Identifier, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.journal.Issued[id]; ok {
			skipped++
			continue
		}
		pending = append(pending, id)
	}
	return pending, skipped
}

// ItemDone implements batch.Observer, journaling successful identifiers.
func (m *Manager) ItemDone(outcome batch.ItemOutcome) {
	if !outcome.Succeeded() {
		return
	}

	m.mu.Lock()
	m.journal.Issued[outcome.Identifier] = Record{
		IssuedAt: time.Now(),
		Duration: outcome.Duration.String(),
	}
	err := m.saveLocked()
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Failed to save journal.", "cnpj", string(outcome.Identifier), "error", err)
	}
}

// saveLocked atomically writes the journal. The caller holds m.mu.
func (m *Manager) saveLocked() error {
	m.journal.LastUpdated = time.Now()
	data, err := json.MarshalIndent(m.journal, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(m.journalPath), "journal-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp journal file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temp journal file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp journal file: %w", err)
	}
	if err := os.Rename(tempFile.Name(), m.journalPath); err != nil {
		return fmt.Errorf("failed to atomically move journal file: %w", err)
	}
	return nil
}

// Close releases the file lock.
func (m *Manager) Close() {
	if err := m.lock.Unlock(); err != nil {
		m.logger.Error("Failed to release file lock.", "error", err)
	} else {
		m.logger.Info("Released file lock.")
	}
}

var _ batch.Observer = (*Manager)(nil)
