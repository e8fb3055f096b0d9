package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(2)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 100 * time.Millisecond

var errInterrupted = errors.New("interrupted")

type Task func(context.Context) ([]string, error)

// Run executes fn under a timeout and prints a styled report to stdout.
func Run(title string, fn Task) ([]string, error) {
	return RunTo(os.Stdout, title, 3*time.Minute, fn)
}

// RunTo executes fn under a timeout. On an interactive terminal a spinner
// runs until fn returns; otherwise only the final report is written.
func RunTo(w io.Writer, title string, timeout time.Duration, fn Task) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if isTerminal(w) {
		return spin(ctx, w, title, fn)
	}
	start := time.Now()
	details, err := fn(ctx)
	_, _ = fmt.Fprintln(w, Render(title, details, err, time.Since(start)))
	return details, err
}

func Render(title string, details []string, err error, elapsed time.Duration) string {
	status := okStyle.Render("OK")
	if err != nil {
		status = failStyle.Render("FAILED")
	}
	lines := []string{titleStyle.Render(title) + "  " + status + detailStyle.Render(elapsed.Round(time.Millisecond).String())}
	for _, d := range details {
		lines = append(lines, detailStyle.Render("• "+d))
	}
	if err != nil {
		lines = append(lines, failStyle.Render(err.Error()))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func spin(ctx context.Context, w io.Writer, title string, fn Task) ([]string, error) {
	final, err := tea.NewProgram(newTaskModel(ctx, title, fn), tea.WithOutput(w), tea.WithInput(nil)).Run()
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", title, err)
	}
	m, ok := final.(taskModel)
	if !ok || m.done == nil {
		return nil, errInterrupted
	}
	return m.done.details, m.done.err
}

type taskDoneMsg struct {
	details []string
	err     error
	elapsed time.Duration
}

type spinTickMsg struct{}

type taskModel struct {
	title string
	run   tea.Cmd
	frame int
	start time.Time
	done  *taskDoneMsg
}

func newTaskModel(ctx context.Context, title string, fn Task) taskModel {
	start := time.Now()
	return taskModel{
		title: title,
		start: start,
		run: func() tea.Msg {
			details, err := fn(ctx)
			return taskDoneMsg{details: details, err: err, elapsed: time.Since(start)}
		},
	}
}

func spinTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg { return spinTickMsg{} })
}

func (m taskModel) Init() tea.Cmd {
	return tea.Batch(m.run, spinTick())
}

func (m taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinTickMsg:
		if m.done != nil {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, spinTick()
	case taskDoneMsg:
		m.done = &msg
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m taskModel) View() string {
	if m.done != nil {
		return Render(m.title, m.done.details, m.done.err, m.done.elapsed) + "\n"
	}
	elapsed := time.Since(m.start).Round(time.Second)
	return spinnerStyle.Render(spinnerFrames[m.frame]) + " " + titleStyle.Render(m.title) + detailStyle.Render(elapsed.String()) + "\n"
}
