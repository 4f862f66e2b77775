package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

const maxBarWidth = 60

// =============================================================================
// Messages
// =============================================================================

// carveProgressMsg reports that done of total seams have been removed.
type carveProgressMsg struct{ done, total int }

// carveDoneMsg carries the pipeline outcome.
type carveDoneMsg struct {
	result *pipeline.Result
	err    error
}

// =============================================================================
// CarveModel - Progress display for carve --progress
// =============================================================================

var quitKey = key.NewBinding(
	key.WithKeys("q", "ctrl+c", "esc"),
	key.WithHelp("q", "cancel"),
)

// CarveModel is the bubbletea model shown while seams are removed.
type CarveModel struct {
	Title  string
	Done   int
	Total  int
	Result *pipeline.Result
	Err    error

	spinner spinner.Model
	bar     progress.Model
	cancel  context.CancelFunc
}

// NewCarveModel creates a progress model. cancel is called when the user quits.
func NewCarveModel(title string, cancel context.CancelFunc) CarveModel {
	return CarveModel{
		Title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styleIconSpinner)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel:  cancel,
	}
}

func (m CarveModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m CarveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			if m.cancel != nil {
				m.cancel()
			}
			m.Err = context.Canceled
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		w := msg.Width - 30
		if w > maxBarWidth {
			w = maxBarWidth
		}
		if w < 10 {
			w = 10
		}
		m.bar.Width = w
	case carveProgressMsg:
		m.Done, m.Total = msg.done, msg.total
	case carveDoneMsg:
		m.Result, m.Err = msg.result, msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m CarveModel) View() string {
	if m.Result != nil || m.Err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	if m.Total == 0 {
		b.WriteString(StyleDim.Render("Decoding " + m.Title))
	} else {
		b.WriteString(m.bar.ViewAs(float64(m.Done) / float64(m.Total)))
		b.WriteString(" ")
		b.WriteString(StyleNumber.Render(fmt.Sprintf("%d/%d", m.Done, m.Total)))
		b.WriteString(StyleDim.Render(" seams"))
	}
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(quitKey.Help().Key + " " + quitKey.Help().Desc))
	b.WriteString("\n")
	return b.String()
}

// runWithProgress runs fn while showing a progress bar on stderr.
func runWithProgress(ctx context.Context, title string, fn func(ctx context.Context, report func(done, total int)) (*pipeline.Result, error)) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewCarveModel(title, cancel), tea.WithOutput(os.Stderr))
	go func() {
		res, err := fn(ctx, func(done, total int) {
			p.Send(carveProgressMsg{done: done, total: total})
		})
		p.Send(carveDoneMsg{result: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(CarveModel)
	return m.Result, m.Err
}
