package scan_model

import (
	"context"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/timmattison/bingrep/internal/scan"
	"golang.org/x/text/message"
	"time"
)

type ScanModel struct {
	WindowWidth  int
	WindowHeight int
	Printer      *message.Printer
	ProgressBar  progress.Model
	SourceName   string
	PatternName  string
	SourceSize   int64
	StartOffset  int64
	Position     int64
	Hits         int
	StartTime    time.Time
	Cancel       context.CancelFunc
	Stats        scan.Stats
	Done         bool
	AbnormalExit bool
	Err          error
}

type ScanProgressMsg struct {
	Position int64
	Hits     int
}

type ScanFinishedMsg struct {
	Stats scan.Stats
	Err   error
}

// Sender is the part of *tea.Program a Reporter needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Reporter returns a progress callback that forwards at most one
// ScanProgressMsg per interval to program.
func Reporter(program Sender, interval time.Duration) func(position int64, hits int) {
	var lastSent time.Time

	return func(position int64, hits int) {
		now := time.Now()
		if now.Sub(lastSent) < interval {
			return
		}

		lastSent = now
		program.Send(ScanProgressMsg{Position: position, Hits: hits})
	}
}

func (m ScanModel) Init() tea.Cmd {
	return m.ProgressBar.Init()
}
