package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clashtui/internal/backend"
	"clashtui/internal/errs"
	"clashtui/internal/logging"
	"clashtui/internal/profile"
	"clashtui/internal/scheduler"
)

type fakeScheduler struct {
	mu        sync.Mutex
	requests  []scheduler.Request
	responses chan scheduler.Response
	err       error
}

// newFakeScheduler returns a scheduler whose response channel is closed, so
// waiting for a response completes immediately.
func newFakeScheduler() *fakeScheduler {
	ch := make(chan scheduler.Response)
	close(ch)
	return &fakeScheduler{responses: ch}
}

func (f *fakeScheduler) Submit(_ context.Context, req scheduler.Request) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.requests = append(f.requests, req)
	return req.ID, nil
}

func (f *fakeScheduler) Responses() <-chan scheduler.Response {
	return f.responses
}

func (f *fakeScheduler) ops() []scheduler.Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scheduler.Op, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Op)
	}
	return out
}

func (f *fakeScheduler) last() scheduler.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestModel(t *testing.T, s Scheduler) Model {
	t.Helper()
	return NewModel(context.Background(), s, Options{
		StateDir:     t.TempDir(),
		TickInterval: time.Millisecond,
	}, logging.Discard())
}

// drain runs cmd and every command it batches, returning the non-nil messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func press(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok, "expected Model from Update")
	return nm, cmd
}

func respond(t *testing.T, m Model, resp scheduler.Response) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(responseMsg(resp))
	nm, ok := next.(Model)
	require.True(t, ok, "expected Model from Update")
	return nm, cmd
}

func sampleProfiles() []backend.ProfileInfo {
	return []backend.ProfileInfo{
		{Name: "alpha", Kind: profile.FileKind(), Downloaded: true},
		{Name: "beta", Kind: profile.RemoteKind("https://example.com/sub"), Current: true, Downloaded: true},
		{Name: "t.generated", Kind: profile.DerivedKind("t"), Downloaded: false},
	}
}

func withProfiles(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = respond(t, m, scheduler.Response{Op: scheduler.OpList, Value: sampleProfiles()})
	m, _ = respond(t, m, scheduler.Response{Op: scheduler.OpTemplates, Value: []string{"t", "work"}})
	return m
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(context.Background(), newFakeScheduler(), Options{}, logging.Discard())

	assert.Equal(t, TabProfiles, m.tab)
	assert.Equal(t, DefaultTickInterval, m.tickInterval)
	assert.Nil(t, m.stateManager)
	assert.False(t, m.quitting)
}

func TestModelInit_LoadsListsAndTicks(t *testing.T) {
	s := newFakeScheduler()
	m := newTestModel(t, s)

	msgs := drain(m.Init())

	assert.ElementsMatch(t, []scheduler.Op{scheduler.OpList, scheduler.OpTemplates, scheduler.OpTick}, s.ops())

	var ticked bool
	for _, msg := range msgs {
		if _, ok := msg.(tickMsg); ok {
			ticked = true
		}
	}
	assert.True(t, ticked, "expected a tick to be scheduled")
}

func TestModelUpdate_QuitOnQ(t *testing.T) {
	s := newFakeScheduler()
	m := withProfiles(t, newTestModel(t, s))
	m, _ = press(t, m, "j")

	m, cmd := press(t, m, "q")

	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, "Goodbye!\n", m.View())

	state, err := m.stateManager.Load()
	require.NoError(t, err)
	assert.Equal(t, TabProfiles, state.Tab)
	assert.Equal(t, 1, state.ProfileSelection)
}

func TestModelUpdate_RestoresPersistedState(t *testing.T) {
	dir := t.TempDir()
	manager := NewUIStateManager(dir, logging.Discard())
	require.NoError(t, manager.Save(&UIState{Tab: TabTemplates, TemplateSelection: 1, LastError: "boom"}))

	m := NewModel(context.Background(), newFakeScheduler(), Options{StateDir: dir}, logging.Discard())

	assert.Equal(t, TabTemplates, m.tab)
	assert.Equal(t, 1, m.templateSel)
	assert.Equal(t, "boom", m.lastError)
}

func TestModelUpdate_Navigation(t *testing.T) {
	m := withProfiles(t, newTestModel(t, newFakeScheduler()))

	m, _ = press(t, m, "k")
	assert.Equal(t, 0, m.profileSel, "selection stays at the top")

	for i := 0; i < 5; i++ {
		m, _ = press(t, m, "j")
	}
	assert.Equal(t, 2, m.profileSel, "selection stops at the last profile")

	m, _ = press(t, m, "tab")
	assert.Equal(t, TabTemplates, m.tab)
	m, _ = press(t, m, "j")
	assert.Equal(t, 1, m.templateSel)
	assert.Equal(t, 2, m.profileSel, "profile selection is kept per tab")

	m, _ = press(t, m, "tab")
	assert.Equal(t, TabProfiles, m.tab)
}

func TestModelUpdate_EnterSelectsProfile(t *testing.T) {
	s := newFakeScheduler()
	m := withProfiles(t, newTestModel(t, s))
	m, _ = press(t, m, "j")

	m, cmd := press(t, m, "enter")
	drain(cmd)

	req := s.last()
	assert.Equal(t, scheduler.OpSelect, req.Op)
	assert.Equal(t, "beta", req.Name)
	assert.NotEqual(t, uuid.Nil, req.ID)
	assert.Equal(t, 1, m.pending)
}

func TestModelUpdate_EnterGeneratesTemplate(t *testing.T) {
	s := newFakeScheduler()
	m := withProfiles(t, newTestModel(t, s))
	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "j")

	_, cmd := press(t, m, "enter")
	drain(cmd)

	req := s.last()
	assert.Equal(t, scheduler.OpGenerate, req.Op)
	assert.Equal(t, "work", req.Name)
}

func TestModelUpdate_UpdateKeys(t *testing.T) {
	s := newFakeScheduler()
	m := withProfiles(t, newTestModel(t, s))
	m, _ = press(t, m, "j")

	_, cmd := press(t, m, "u")
	drain(cmd)
	assert.Equal(t, scheduler.OpUpdate, s.last().Op)
	assert.Equal(t, "beta", s.last().Name)

	_, cmd = press(t, m, "U")
	drain(cmd)
	assert.Equal(t, scheduler.OpUpdateAll, s.last().Op)
}

func TestModelUpdate_RemoveNeedsConfirmation(t *testing.T) {
	s := newFakeScheduler()
	m := withProfiles(t, newTestModel(t, s))

	m, cmd := press(t, m, "d")
	assert.Nil(t, cmd)
	assert.Contains(t, m.message, "Press d again")
	assert.Empty(t, s.ops())

	// any other key cancels
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "k")
	m, cmd = press(t, m, "d")
	assert.Nil(t, cmd)

	_, cmd = press(t, m, "d")
	drain(cmd)
	require.Len(t, s.ops(), 1)
	assert.Equal(t, scheduler.OpRemove, s.last().Op)
	assert.Equal(t, "alpha", s.last().Name)
}

func TestModelUpdate_RefreshKey(t *testing.T) {
	s := newFakeScheduler()
	m := newTestModel(t, s)

	_, cmd := press(t, m, "r")
	drain(cmd)

	assert.ElementsMatch(t, []scheduler.Op{scheduler.OpList, scheduler.OpTemplates, scheduler.OpTick}, s.ops())
}

func TestModelUpdate_KeysWithEmptyListsDoNothing(t *testing.T) {
	s := newFakeScheduler()
	m := newTestModel(t, s)

	for _, key := range []string{"enter", "u", "d", "d"} {
		var cmd tea.Cmd
		m, cmd = press(t, m, key)
		drain(cmd)
	}
	assert.Empty(t, s.ops())
}

func TestModelUpdate_ListResponseClampsSelection(t *testing.T) {
	m := withProfiles(t, newTestModel(t, newFakeScheduler()))
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "j")
	require.Equal(t, 2, m.profileSel)

	m, _ = respond(t, m, scheduler.Response{Op: scheduler.OpList, Value: sampleProfiles()[:1]})

	assert.Equal(t, 0, m.profileSel)
	assert.Len(t, m.profiles, 1)
}

func TestModelUpdate_SuccessRefreshes(t *testing.T) {
	s := newFakeScheduler()
	m := withProfiles(t, newTestModel(t, s))
	m.pending = 1

	m, cmd := respond(t, m, scheduler.Response{Op: scheduler.OpSelect})
	drain(cmd)

	assert.Equal(t, 0, m.pending)
	assert.Equal(t, "Profile selected", m.message)
	assert.ElementsMatch(t, []scheduler.Op{scheduler.OpList, scheduler.OpTemplates, scheduler.OpTick}, s.ops())
}

func TestModelUpdate_ErrorResponse(t *testing.T) {
	s := newFakeScheduler()
	m := withProfiles(t, newTestModel(t, s))

	m, cmd := respond(t, m, scheduler.Response{Op: scheduler.OpUpdate, Err: errs.NotUpgradable("alpha")})
	drain(cmd)

	assert.Contains(t, m.lastError, "update")
	assert.Contains(t, m.lastError, "alpha")
	assert.Empty(t, s.ops(), "failed updates do not refresh")
	assert.Contains(t, m.View(), m.lastError)

	state, err := m.stateManager.Load()
	require.NoError(t, err)
	assert.Equal(t, m.lastError, state.LastError)

	m, _ = press(t, m, "esc")
	assert.Empty(t, m.lastError)
}

func TestModelUpdate_FailedSelectStillRefreshes(t *testing.T) {
	s := newFakeScheduler()
	m := withProfiles(t, newTestModel(t, s))

	m, cmd := respond(t, m, scheduler.Response{
		Op:  scheduler.OpSelect,
		Err: errs.DaemonUnreachable(errors.New("connection refused")),
	})
	drain(cmd)

	assert.NotEmpty(t, m.lastError)
	assert.Contains(t, s.ops(), scheduler.OpList)
}

func TestModelUpdate_UpdateAllSummary(t *testing.T) {
	m := withProfiles(t, newTestModel(t, newFakeScheduler()))

	m, _ = respond(t, m, scheduler.Response{Op: scheduler.OpUpdateAll, Value: []backend.UpdateResult{
		{Name: "beta"},
		{Name: "t.generated", Err: errors.New("template missing")},
	}})
	assert.Contains(t, m.lastError, "1 of 2 updates failed")
	assert.Contains(t, m.lastError, "t.generated")

	m, _ = respond(t, m, scheduler.Response{Op: scheduler.OpUpdateAll, Value: []backend.UpdateResult{{Name: "beta"}}})
	assert.Empty(t, m.lastError)
	assert.Equal(t, "Updated 1 profiles", m.message)
}

func TestModelUpdate_GenerateResponse(t *testing.T) {
	m := newTestModel(t, newFakeScheduler())

	m, _ = respond(t, m, scheduler.Response{
		Op:    scheduler.OpGenerate,
		Value: profile.Profile{Name: "work.generated", Kind: profile.DerivedKind("work")},
	})

	assert.Equal(t, "Generated work.generated", m.message)
}

func TestModelUpdate_TickStatus(t *testing.T) {
	m := withProfiles(t, newTestModel(t, newFakeScheduler()))
	assert.Contains(t, m.View(), "daemon: …")

	m, _ = respond(t, m, scheduler.Response{Op: scheduler.OpTick, Value: backend.Status{
		State: backend.StateRunning, Version: "v1.18.0", Current: "beta",
	}})
	view := m.View()
	assert.Contains(t, view, "running v1.18.0")
	assert.Contains(t, view, "current: beta")

	m, _ = respond(t, m, scheduler.Response{Op: scheduler.OpTick, Value: backend.Status{
		State: backend.StateUnknown, Current: "beta",
	}})
	assert.Contains(t, m.View(), "daemon: unknown")
}

func TestModelUpdate_TickMessageResubmits(t *testing.T) {
	s := newFakeScheduler()
	m := newTestModel(t, s)

	_, cmd := m.Update(tickMsg(time.Now()))
	msgs := drain(cmd)

	assert.Equal(t, []scheduler.Op{scheduler.OpTick}, s.ops())
	require.Len(t, msgs, 1)
	assert.IsType(t, tickMsg{}, msgs[0])
}

func TestModelUpdate_ChangeRefreshes(t *testing.T) {
	s := newFakeScheduler()
	changes := make(chan struct{}, 1)
	m := NewModel(context.Background(), s, Options{Changes: changes}, logging.Discard())

	changes <- struct{}{}
	_, cmd := m.Update(changeMsg{})
	msgs := drain(cmd)

	assert.ElementsMatch(t, []scheduler.Op{scheduler.OpList, scheduler.OpTemplates, scheduler.OpTick}, s.ops())
	assert.Equal(t, []tea.Msg{changeMsg{}}, msgs, "the change listener is re-armed")
}

func TestModelUpdate_SubmitFailure(t *testing.T) {
	s := newFakeScheduler()
	s.err = scheduler.ErrStopped
	m := withProfiles(t, newTestModel(t, s))

	m, cmd := press(t, m, "enter")
	require.Equal(t, 1, m.pending)
	msgs := drain(cmd)
	require.Len(t, msgs, 1)

	next, _ := m.Update(msgs[0])
	m = next.(Model)

	assert.Equal(t, 0, m.pending)
	assert.Contains(t, m.lastError, scheduler.ErrStopped.Error())
}

func TestModelView_Profiles(t *testing.T) {
	m := withProfiles(t, newTestModel(t, newFakeScheduler()))

	view := m.View()
	for _, want := range []string{"clashtui", "Profiles", "Templates", "alpha", "* beta", "[url]", "[generated] from t", "(not downloaded)", "Update all: U"} {
		assert.True(t, strings.Contains(view, want), "view missing %q:\n%s", want, view)
	}
}

func TestModelView_Templates(t *testing.T) {
	m := withProfiles(t, newTestModel(t, newFakeScheduler()))
	m, _ = press(t, m, "tab")

	view := m.View()
	assert.Contains(t, view, "work")
	assert.Contains(t, view, "Generate: Enter")
	assert.NotContains(t, view, "alpha")
}

func TestModelView_Empty(t *testing.T) {
	m := newTestModel(t, newFakeScheduler())

	view := m.View()
	assert.Contains(t, view, "No profiles")
	assert.Contains(t, view, "current: none")
}
