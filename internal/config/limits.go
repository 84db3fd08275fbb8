package config

import "time"

const (
	// MaxWorkspaceNameLength is the maximum length for workspace names.
	// Limited to 255 for reasonable UX (names should be short and
	// descriptive).
	MaxWorkspaceNameLength = 255

	// MaxNodeNameLength is the maximum length for folder and file names.
	// Same as workspace names for consistency.
	MaxNodeNameLength = 255

	// MaxMessageLength is the maximum length for a chat message body.
	MaxMessageLength = 4000

	// MaxTreeDepth bounds ancestor walks in the tree store. Remote state
	// can be transiently cyclic while concurrent moves reconcile; a
	// bounded walk keeps queries terminating instead of spinning.
	MaxTreeDepth = 512

	// DefaultAutosaveWindow is the quiet period after the last keystroke
	// before buffered file content is written to the remote store.
	DefaultAutosaveWindow = 500 * time.Millisecond
)
