package tui

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"clashtui/internal/fsutil"
	"clashtui/internal/logging"
)

// UIStateFileName is the name of the UI state file
const UIStateFileName = "ui_state.json"

// UIStateManager persists tab and selection between sessions
type UIStateManager struct {
	stateDir string
	logger   *logging.Logger
}

// NewUIStateManager creates a new UI state manager
func NewUIStateManager(stateDir string, logger *logging.Logger) *UIStateManager {
	return &UIStateManager{
		stateDir: stateDir,
		logger:   logger,
	}
}

func (m *UIStateManager) statePath() string {
	return filepath.Join(m.stateDir, UIStateFileName)
}

// Load reads the UI state. A missing file yields the default state.
func (m *UIStateManager) Load() (*UIState, error) {
	data, err := fsutil.ReadOptional(m.statePath())
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if data == nil {
		return defaultUIState(), nil
	}

	var state UIState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.Tab != TabTemplates {
		state.Tab = TabProfiles
	}
	if state.ProfileSelection < 0 {
		state.ProfileSelection = 0
	}
	if state.TemplateSelection < 0 {
		state.TemplateSelection = 0
	}
	return &state, nil
}

// Save writes the UI state atomically
func (m *UIStateManager) Save(state *UIState) error {
	if err := fsutil.EnsureDir(m.stateDir); err != nil {
		return err
	}

	state.Updated = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := fsutil.AtomicWriteFile(m.statePath(), data, fsutil.DefaultFilePermissions, m.logger); err != nil {
		return err
	}

	m.logger.Debug("tui.state.saved", "UI state saved", map[string]interface{}{
		"tab":                string(state.Tab),
		"profile_selection":  state.ProfileSelection,
		"template_selection": state.TemplateSelection,
	})
	return nil
}

// SaveError records errorMsg as the last error, keeping the rest of the state
func (m *UIStateManager) SaveError(errorMsg string) error {
	state, err := m.Load()
	if err != nil {
		state = defaultUIState()
	}
	state.LastError = errorMsg
	return m.Save(state)
}

// ClearError clears the last error from the state
func (m *UIStateManager) ClearError() error {
	state, err := m.Load()
	if err != nil {
		return err
	}

	state.LastError = ""
	return m.Save(state)
}
