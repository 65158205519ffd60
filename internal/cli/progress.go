package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/mlheats/heats/internal/client"
)

const pollInterval = time.Second

// Theme holds the colors used by the watch view.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers the next status poll
type tickMsg time.Time

// runUpdateMsg carries a freshly fetched run
type runUpdateMsg struct {
	run *client.Run
	err error
}

// watchModel is the bubbletea model behind `heats watch`.
type watchModel struct {
	client   *client.Client
	runID    string
	run      *client.Run
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newWatchModel(c *client.Client, run *client.Run) watchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return watchModel{
		client:   c,
		runID:    run.ID,
		run:      run,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init kicks off the poll loop and the progress bar animation.
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchRun()

	case runUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch run status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.run = msg.run

		switch m.run.Status {
		case "completed":
			m.done = true
			return m, tea.Quit
		case "failed":
			m.done = true
			if m.run.Error != "" {
				m.err = fmt.Errorf("%s", m.run.Error)
			} else {
				m.err = fmt.Errorf("%d of %d job(s) failed", m.run.Failed, m.run.Total)
			}
			return m, tea.Quit
		}

		// Keep polling while the run is live.
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m watchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m watchModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.run == nil {
		return "Loading run status...\n"
	}

	// Settled jobs drive the bar, whether they completed or failed.
	var pct float64
	if m.run.Total > 0 {
		pct = float64(m.run.Completed+m.run.Failed) / float64(m.run.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.run.Status))

	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d jobs", m.run.Completed+m.run.Failed, m.run.Total)
	if m.run.Failed > 0 {
		counts += m.theme.errorStyle().Render(fmt.Sprintf(" (%d failed)", m.run.Failed))
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView is the frame left on screen after the program exits.
func (m watchModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nRun %s continues on the server.\nUse 'heats runs %s' to check status.\n",
			m.runID, m.runID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		output := m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Run failed: %s\n", m.err))
		if m.run != nil {
			for _, f := range m.run.Failures {
				name := f.Classifier
				if name == "" {
					name = f.SubmissionID
				}
				output += fmt.Sprintf("  %s: %s\n", name, f.Message)
			}
		}
		return output
	}

	// Success with scores
	if m.run != nil {
		var output string
		output += m.theme.completedStyle().Render("✓ Run completed") + "\n\n"
		output += fmt.Sprintf("  Jobs completed: %d/%d\n", m.run.Completed, m.run.Total)
		if m.run.LogDir != "" {
			output += fmt.Sprintf("  Logs: %s\n", m.run.LogDir)
		}
		if len(m.run.Summary) > 0 {
			output += "\n  Best scores:\n"
			for i, row := range m.run.Summary {
				if i == 3 {
					break
				}
				output += fmt.Sprintf("    %s on %s: F1 %.4f\n", row.Classifier, row.TestSet, row.F1)
			}
		}
		return output
	}

	return m.theme.completedStyle().Render("✓ Run completed\n")
}

// fetchRun asks the server for the run's current state. It runs as a tea
// command so the fetch never blocks Update().
func (m watchModel) fetchRun() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		run, err := m.client.GetRun(ctx, m.runID)
		return runUpdateMsg{run: run, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunWatchProgress runs the interactive progress UI for a run.
// Returns nil on success or Ctrl+C (run keeps going server-side),
// an error when the run itself failed.
func RunWatchProgress(c *client.Client, run *client.Run) error {
	model := newWatchModel(c, run)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(watchModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
