package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/openmined/assetsync/internal/client"
	"github.com/openmined/assetsync/internal/syncer"
)

const (
	minBarWidth = 10
	maxBarWidth = 64
	maxTips     = 5
)

var (
	titleStyle = cyan.Bold(true)
	phaseStyle = lightGray
	helpStyle  = gray
	tipStyle   = yellow
	errStyle   = red.Bold(true)
	doneStyle  = green.Bold(true)
)

// --- Messages ---
type notificationMsg syncer.Notification
type syncDoneMsg struct {
	res *syncer.Result
	err error
}

type syncModel struct {
	progress progress.Model
	spinner  spinner.Model

	event  syncer.ProgressEvent
	tips   []syncer.Tip
	result *syncer.Result
	err    error

	done     bool
	quitting bool
}

func newSyncModel() syncModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cyan

	return syncModel{
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		spinner:  s,
	}
}

func (m syncModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.progress.Width = max(min(msg.Width-4, maxBarWidth), minBarWidth)
		return m, nil

	case notificationMsg:
		if msg.Progress != nil {
			m.event = *msg.Progress
		}
		if msg.Tip != nil {
			m.tips = append(m.tips, *msg.Tip)
			if len(m.tips) > maxTips {
				m.tips = m.tips[len(m.tips)-maxTips:]
			}
		}
		return m, nil

	case syncDoneMsg:
		m.done = true
		m.result = msg.res
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m syncModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("AssetSync") + "\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errStyle.Render("Sync failed: ") + m.err.Error() + "\n")
	case m.done && m.result != nil:
		b.WriteString(doneStyle.Render("Done") + " " + m.summary() + "\n")
	default:
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), phaseStyle.Render(m.event.Phase.String()))
		b.WriteString(m.progress.ViewAs(m.event.Fraction) + "\n")
		if line := m.fileLine(); line != "" {
			b.WriteString(line + "\n")
		}
	}

	for _, t := range m.tips {
		b.WriteString(tipStyle.Render("! "+t.String()) + "\n")
	}

	switch {
	case m.quitting:
		b.WriteString("\n" + helpStyle.Render("Stopping, saving progress...") + "\n")
	case !m.done:
		b.WriteString("\n" + helpStyle.Render("Press 'q' to stop, progress is kept for the next run.") + "\n")
	}
	return b.String()
}

func (m syncModel) fileLine() string {
	e := m.event
	if e.CurrentFile == "" {
		return ""
	}
	line := fmt.Sprintf("%s  %d/%d  %s/s", e.CurrentFile, e.Completed, e.Total, humanize.Bytes(uint64(e.SpeedBytesPerSec)))
	if e.BytesTotal > 0 {
		line += fmt.Sprintf("  %s of %s", humanize.Bytes(e.BytesDone), humanize.Bytes(e.BytesTotal))
	}
	if e.ETASeconds > 0 {
		line += fmt.Sprintf("  ETA %.0fs", e.ETASeconds)
	}
	return gray.Render(line)
}

func (m syncModel) summary() string {
	r := m.result
	s := fmt.Sprintf("%s -> %s, %d files downloaded", versionLabel(r.LocalVersion), versionLabel(r.RemoteVersion), r.Downloaded)
	if r.Offline {
		s += ", offline"
	}
	return s
}

// runSyncTUI drives a sync behind the progress view. Quitting the view
// cancels the sync, which flushes what it has so far.
func runSyncTUI(ctx context.Context, c *client.Client) error {
	if fileLogger != nil {
		prev := slog.Default()
		slog.SetDefault(fileLogger)
		defer slog.SetDefault(prev)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := c.Subscribe()
	p := tea.NewProgram(newSyncModel(), tea.WithOutput(os.Stdout))

	go func() {
		for n := range events {
			p.Send(notificationMsg(n))
		}
	}()

	done := make(chan syncDoneMsg, 1)
	go func() {
		res, err := c.Sync(ctx)
		msg := syncDoneMsg{res: res, err: err}
		done <- msg
		p.Send(msg)
	}()

	_, runErr := p.Run()
	cancel()
	result := <-done
	c.Unsubscribe(events)

	// SIGINT also cancels ctx, the sync result says what happened
	if runErr != nil && !errors.Is(runErr, tea.ErrInterrupted) {
		return runErr
	}
	if result.err != nil {
		return result.err
	}
	printResult(os.Stdout, result.res)
	return nil
}
