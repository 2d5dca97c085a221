package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"clashtui/internal/backend"
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff"))
	tabStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).Padding(0, 1)
	tabActiveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00d7ff")).Bold(true).Padding(0, 1)
	itemStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	itemSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00d7ff")).Bold(true)
	descStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	labelStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af"))
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff"))
	messageStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd700"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
)

// View renders the model
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("clashtui"))
	b.WriteString("  ")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.tab == TabTemplates {
		b.WriteString(m.renderTemplates())
	} else {
		b.WriteString(m.renderProfiles())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	if m.message != "" {
		b.WriteString(messageStyle.Render(m.message))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString(errorStyle.Render("⚠ " + m.lastError))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.hint()))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, 2)
	for _, t := range []Tab{TabProfiles, TabTemplates} {
		if t == m.tab {
			tabs = append(tabs, tabActiveStyle.Render(t.Title()))
		} else {
			tabs = append(tabs, tabStyle.Render(t.Title()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderProfiles() string {
	if len(m.profiles) == 0 {
		return descStyle.Render("No profiles. Import one with 'clashtui profile import'.") + "\n"
	}

	var b strings.Builder
	for i, p := range m.profiles {
		marker := "  "
		if p.Current {
			marker = "* "
		}
		line := marker + p.Name
		if i == m.profileSel {
			b.WriteString(itemSelectedStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString(" ")
		b.WriteString(descStyle.Render(describeProfile(p)))
		b.WriteString("\n")
	}
	return b.String()
}

func describeProfile(p backend.ProfileInfo) string {
	desc := "[" + p.Kind.String() + "]"
	if p.Kind.Template != "" {
		desc += " from " + p.Kind.Template
	}
	if !p.Downloaded {
		desc += " (not downloaded)"
	}
	return desc
}

func (m Model) renderTemplates() string {
	if len(m.templates) == 0 {
		return descStyle.Render("No templates in the templates directory.") + "\n"
	}

	var b strings.Builder
	for i, name := range m.templates {
		line := "  " + name
		if i == m.templateSel {
			b.WriteString(itemSelectedStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderStatus() string {
	current := m.status.Current
	if current == "" {
		for _, p := range m.profiles {
			if p.Current {
				current = p.Name
				break
			}
		}
	}
	if current == "" {
		current = "none"
	}

	daemon := "…"
	if m.hasStatus {
		if m.status.State == backend.StateRunning {
			daemon = fmt.Sprintf("running %s", m.status.Version)
		} else {
			daemon = string(backend.StateUnknown)
		}
	}

	status := labelStyle.Render("current:") + " " + itemStyle.Render(current) +
		"  " + labelStyle.Render("daemon:") + " " + itemStyle.Render(daemon)
	if m.pending > 0 {
		status += "  " + messageStyle.Render(fmt.Sprintf("(%d pending)", m.pending))
	}
	return status
}

func (m Model) hint() string {
	if m.tab == TabTemplates {
		return "Move: j/k | Generate: Enter | Switch: Tab | Refresh: r | Quit: q"
	}
	return "Move: j/k | Select: Enter | Update: u | Update all: U | Remove: d | Switch: Tab | Refresh: r | Quit: q"
}
