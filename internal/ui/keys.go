package ui

import tea "github.com/charmbracelet/bubbletea"

func isQuit(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func isPanelToggle(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "p", "esc":
		return true
	}
	return false
}

func helpText(panelOpen bool) string {
	if panelOpen {
		return "tab/shift+tab select  ←/→ adjust  p/esc resume  q quit"
	}
	return "space play/pause  f sfx  p pause menu  i icon  q quit"
}
