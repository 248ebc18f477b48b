package scan_model

import (
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"time"
)

func (m ScanModel) Update(untypedMessage tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	if m.StartTime.IsZero() {
		m.StartTime = time.Now()
	}

	switch typedMessage := untypedMessage.(type) {
	case tea.WindowSizeMsg:
		m.WindowWidth = typedMessage.Width
		m.WindowHeight = typedMessage.Height
	case tea.KeyMsg:
		if typedMessage.Type == tea.KeyCtrlC {
			m.AbnormalExit = true

			if m.Cancel != nil {
				m.Cancel()
			}
		}
	case ScanProgressMsg:
		m.Position = typedMessage.Position
		m.Hits = typedMessage.Hits
	case ScanFinishedMsg:
		m.Done = true
		m.Stats = typedMessage.Stats
		m.Hits = typedMessage.Stats.Lines
		m.Position = m.StartOffset + typedMessage.Stats.BytesScanned
		m.Err = typedMessage.Err
	}

	if m.AbnormalExit || m.Done {
		return m, tea.Quit
	}

	var newModel tea.Model

	newModel, cmd = m.ProgressBar.Update(untypedMessage)
	cmds = append(cmds, cmd)

	if newProgressBar, ok := newModel.(progress.Model); ok {
		m.ProgressBar = newProgressBar
	}

	return m, tea.Batch(cmds...)
}
