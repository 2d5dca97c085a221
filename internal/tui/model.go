// Package tui is the terminal front end. It never touches the backend: every
// action is submitted to the scheduler and the UI redraws from responses.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"clashtui/internal/backend"
	"clashtui/internal/logging"
	"clashtui/internal/profile"
	"clashtui/internal/scheduler"
)

// DefaultTickInterval is used when Options.TickInterval is not positive
const DefaultTickInterval = 5 * time.Second

// Scheduler is the part of the command loop the UI drives
type Scheduler interface {
	Submit(ctx context.Context, req scheduler.Request) (uuid.UUID, error)
	Responses() <-chan scheduler.Response
}

// Options configures the model
type Options struct {
	// StateDir holds ui_state.json. Empty disables persistence.
	StateDir     string
	TickInterval time.Duration
	// Changes fires when profile or template files change on disk.
	Changes <-chan struct{}
}

type (
	responseMsg  scheduler.Response
	tickMsg      time.Time
	changeMsg    struct{}
	submitErrMsg struct {
		op  scheduler.Op
		err error
	}
)

// Model is the bubbletea model
type Model struct {
	ctx          context.Context
	sched        Scheduler
	changes      <-chan struct{}
	tickInterval time.Duration
	logger       *logging.Logger
	stateManager *UIStateManager

	tab         Tab
	profileSel  int
	templateSel int
	profiles    []backend.ProfileInfo
	templates   []string

	status    backend.Status
	hasStatus bool

	pending       int
	confirmRemove string
	message       string
	lastError     string
	quitting      bool
}

// NewModel creates the model and restores the persisted tab and selection
func NewModel(ctx context.Context, s Scheduler, opts Options, logger *logging.Logger) Model {
	interval := opts.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	m := Model{
		ctx:          ctx,
		sched:        s,
		changes:      opts.Changes,
		tickInterval: interval,
		logger:       logger,
		tab:          TabProfiles,
	}

	if opts.StateDir != "" {
		m.stateManager = NewUIStateManager(opts.StateDir, logger)
		state, err := m.stateManager.Load()
		if err != nil {
			logger.Warn("tui.state.load_failed", "Ignoring unreadable UI state", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			m.tab = state.Tab
			m.profileSel = state.ProfileSelection
			m.templateSel = state.TemplateSelection
			m.lastError = state.LastError
		}
	}

	return m
}

// Run starts the program and blocks until the user quits or ctx ends
func Run(ctx context.Context, s Scheduler, opts Options, logger *logging.Logger) error {
	p := tea.NewProgram(NewModel(ctx, s, opts, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Init loads both lists, polls the daemon once and arms the listeners
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refresh(),
		m.waitForResponse(),
		m.tickAfter(),
		m.waitForChange(),
	)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case responseMsg:
		next, cmd := m.handleResponse(scheduler.Response(msg))
		return next, tea.Batch(cmd, next.waitForResponse())

	case tickMsg:
		return m, tea.Batch(m.submit(scheduler.NewRequest(scheduler.OpTick, "")), m.tickAfter())

	case changeMsg:
		m.logger.Debug("tui.files.changed", "Files changed on disk", nil)
		return m, tea.Batch(m.refresh(), m.waitForChange())

	case submitErrMsg:
		if isUserOp(msg.op) && m.pending > 0 {
			m.pending--
		}
		m.setError(fmt.Sprintf("%s: %v", msg.op, msg.err))
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	if key != "d" {
		m.confirmRemove = ""
	}

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.saveState()
		return m, tea.Quit

	case "tab":
		m.tab = m.tab.Next()

	case "j", "down":
		m.move(1)

	case "k", "up":
		m.move(-1)

	case "esc":
		m.lastError = ""
		m.message = ""

	case "r":
		return m, m.refresh()

	case "enter":
		if m.tab == TabTemplates {
			if name, ok := m.selectedTemplate(); ok {
				return m.start(scheduler.NewRequest(scheduler.OpGenerate, name), "Generating "+name)
			}
			return m, nil
		}
		if p, ok := m.selectedProfile(); ok {
			return m.start(scheduler.NewRequest(scheduler.OpSelect, p.Name), "Selecting "+p.Name)
		}

	case "u":
		if p, ok := m.selectedProfile(); ok && m.tab == TabProfiles {
			return m.start(scheduler.NewRequest(scheduler.OpUpdate, p.Name), "Updating "+p.Name)
		}

	case "U":
		return m.start(scheduler.NewRequest(scheduler.OpUpdateAll, ""), "Updating all profiles")

	case "d":
		p, ok := m.selectedProfile()
		if !ok || m.tab != TabProfiles {
			return m, nil
		}
		if m.confirmRemove != p.Name {
			m.confirmRemove = p.Name
			m.message = fmt.Sprintf("Press d again to remove %s", p.Name)
			return m, nil
		}
		m.confirmRemove = ""
		return m.start(scheduler.NewRequest(scheduler.OpRemove, p.Name), "Removing "+p.Name)
	}

	return m, nil
}

func (m Model) handleResponse(resp scheduler.Response) (Model, tea.Cmd) {
	if isUserOp(resp.Op) && m.pending > 0 {
		m.pending--
	}

	if resp.Err != nil {
		m.setError(fmt.Sprintf("%s: %v", resp.Op, resp.Err))
		if resp.Op == scheduler.OpSelect {
			// a failed reload still commits the selection
			return m, m.refresh()
		}
		return m, nil
	}

	switch resp.Op {
	case scheduler.OpList:
		if v, ok := resp.Value.([]backend.ProfileInfo); ok {
			m.profiles = v
			m.profileSel = clamp(m.profileSel, len(v))
		}
		return m, nil

	case scheduler.OpTemplates:
		if v, ok := resp.Value.([]string); ok {
			m.templates = v
			m.templateSel = clamp(m.templateSel, len(v))
		}
		return m, nil

	case scheduler.OpTick:
		if v, ok := resp.Value.(backend.Status); ok {
			m.status = v
			m.hasStatus = true
		}
		return m, nil

	case scheduler.OpSelect:
		m.setMessage("Profile selected")

	case scheduler.OpUpdate:
		m.setMessage("Profile updated")

	case scheduler.OpUpdateAll:
		results, _ := resp.Value.([]backend.UpdateResult)
		failed := 0
		var first error
		for _, r := range results {
			if r.Err != nil {
				failed++
				if first == nil {
					first = fmt.Errorf("%s: %w", r.Name, r.Err)
				}
			}
		}
		if failed > 0 {
			m.message = ""
			m.setError(fmt.Sprintf("%d of %d updates failed; %v", failed, len(results), first))
		} else {
			m.setMessage(fmt.Sprintf("Updated %d profiles", len(results)))
		}

	case scheduler.OpGenerate:
		if p, ok := resp.Value.(profile.Profile); ok {
			m.setMessage("Generated " + p.Name)
		}

	case scheduler.OpRemove:
		m.setMessage("Profile removed")

	default:
		return m, nil
	}

	return m, m.refresh()
}

func (m Model) start(req scheduler.Request, message string) (tea.Model, tea.Cmd) {
	m.pending++
	m.message = message
	return m, m.submit(req)
}

func (m *Model) setMessage(msg string) {
	m.message = msg
	m.lastError = ""
}

func (m *Model) setError(msg string) {
	m.lastError = msg
	m.logger.Warn("tui.op.failed", "Operation failed", map[string]interface{}{
		"error": msg,
	})
	if m.stateManager != nil {
		if err := m.stateManager.SaveError(msg); err != nil {
			m.logger.Warn("tui.state.save_failed", "Failed to persist UI error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (m *Model) saveState() {
	if m.stateManager == nil {
		return
	}
	state := &UIState{
		Tab:               m.tab,
		ProfileSelection:  m.profileSel,
		TemplateSelection: m.templateSel,
		LastError:         m.lastError,
	}
	if err := m.stateManager.Save(state); err != nil {
		m.logger.Warn("tui.state.save_failed", "Failed to persist UI state", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (m *Model) move(delta int) {
	if m.tab == TabTemplates {
		m.templateSel = clamp(m.templateSel+delta, len(m.templates))
		return
	}
	m.profileSel = clamp(m.profileSel+delta, len(m.profiles))
}

func (m Model) selectedProfile() (backend.ProfileInfo, bool) {
	if m.profileSel < 0 || m.profileSel >= len(m.profiles) {
		return backend.ProfileInfo{}, false
	}
	return m.profiles[m.profileSel], true
}

func (m Model) selectedTemplate() (string, bool) {
	if m.templateSel < 0 || m.templateSel >= len(m.templates) {
		return "", false
	}
	return m.templates[m.templateSel], true
}

// refresh reloads both lists and the daemon status
func (m Model) refresh() tea.Cmd {
	return tea.Batch(
		m.submit(scheduler.NewRequest(scheduler.OpList, "")),
		m.submit(scheduler.NewRequest(scheduler.OpTemplates, "")),
		m.submit(scheduler.NewRequest(scheduler.OpTick, "")),
	)
}

func (m Model) submit(req scheduler.Request) tea.Cmd {
	ctx, s := m.ctx, m.sched
	return func() tea.Msg {
		if _, err := s.Submit(ctx, req); err != nil {
			return submitErrMsg{op: req.Op, err: err}
		}
		return nil
	}
}

func (m Model) waitForResponse() tea.Cmd {
	ctx, ch := m.ctx, m.sched.Responses()
	return func() tea.Msg {
		select {
		case resp, ok := <-ch:
			if !ok {
				return nil
			}
			return responseMsg(resp)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ctx, ch := m.ctx, m.changes
	return func() tea.Msg {
		select {
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			return changeMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) tickAfter() tea.Cmd {
	return tea.Tick(m.tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// isUserOp reports whether op was started by a key press rather than a refresh
func isUserOp(op scheduler.Op) bool {
	switch op {
	case scheduler.OpList, scheduler.OpTemplates, scheduler.OpTick:
		return false
	}
	return true
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
