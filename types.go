package moss

import (
	"github.com/jward/moss/internal/config"
	"github.com/jward/moss/internal/journal"
	"github.com/jward/moss/internal/sandbox"
	"github.com/jward/moss/internal/shadow"
)

// Public type aliases for the internal types that appear in the Workspace
// API. External consumers use these names; no conversion is needed.

type Config = config.Config

type ID = shadow.ID
type Hunk = shadow.Hunk
type SnapshotInfo = shadow.Info
type Snapshot = shadow.Snapshot
type SnapshotOption = shadow.SnapshotOption

type Sandbox = sandbox.Sandbox
type FileDiff = sandbox.FileDiff
type ValidationResult = sandbox.ValidationResult
type Check = sandbox.Check
type CheckReport = sandbox.CheckReport

type JournalEntry = journal.Entry

// WithMessage sets the snapshot message.
func WithMessage(msg string) SnapshotOption {
	return shadow.WithMessage(msg)
}

// ParseID validates a snapshot id.
func ParseID(s string) (ID, error) {
	return shadow.ParseID(s)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}
