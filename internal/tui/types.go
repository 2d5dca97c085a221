package tui

import "time"

// Tab is one of the two list views
type Tab string

const (
	// TabProfiles lists registry entries
	TabProfiles Tab = "profiles"
	// TabTemplates lists template files
	TabTemplates Tab = "templates"
)

// Next cycles to the other tab
func (t Tab) Next() Tab {
	if t == TabTemplates {
		return TabProfiles
	}
	return TabTemplates
}

// Title is the label shown in the tab bar
func (t Tab) Title() string {
	if t == TabTemplates {
		return "Templates"
	}
	return "Profiles"
}

// UIState is the persisted UI state in ui_state.json
type UIState struct {
	Tab               Tab       `json:"tab"`
	ProfileSelection  int       `json:"profile_selection"`
	TemplateSelection int       `json:"template_selection"`
	LastError         string    `json:"last_error"`
	Updated           time.Time `json:"updated"`
}

func defaultUIState() *UIState {
	return &UIState{
		Tab:     TabProfiles,
		Updated: time.Now().UTC(),
	}
}
