package finder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Builtin is a terminal picker with incremental filtering. It draws on
// Out (stderr by default) so stdout stays free for the caller.
type Builtin struct {
	Prompt string
	In     io.Reader
	Out    io.Writer
}

// Select runs the picker until the user chooses a line or quits.
func (b *Builtin) Select(ctx context.Context, lines []string) (int, error) {
	if len(lines) == 0 {
		return 0, ErrCancelled
	}
	out := b.Out
	if out == nil {
		out = os.Stderr
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out), tea.WithAltScreen()}
	if b.In != nil {
		opts = append(opts, tea.WithInput(b.In))
	}
	final, err := tea.NewProgram(newPicker(b.Prompt, lines), opts...).Run()
	if err != nil {
		return 0, fmt.Errorf("finder: %w", err)
	}
	p := final.(picker)
	if p.chosen < 0 {
		return 0, ErrCancelled
	}
	return p.chosen, nil
}

var (
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	countStyle    = lipgloss.NewStyle().Faint(true)
)

// picker is the bubbletea model behind Builtin.
type picker struct {
	prompt  string
	items   []string
	query   []rune
	matches []int // indexes into items
	cursor  int   // index into matches
	offset  int   // first visible match
	height  int
	chosen  int
}

func newPicker(prompt string, items []string) picker {
	p := picker{prompt: prompt, items: items, height: 10, chosen: -1}
	p.filter()
	return p
}

func (p *picker) filter() {
	q := strings.ToLower(string(p.query))
	p.matches = p.matches[:0]
	for i, it := range p.items {
		if q == "" || strings.Contains(strings.ToLower(it), q) {
			p.matches = append(p.matches, i)
		}
	}
	p.cursor, p.offset = 0, 0
}

func (p *picker) move(delta int) {
	p.cursor += delta
	if p.cursor < 0 {
		p.cursor = 0
	}
	if p.cursor >= len(p.matches) {
		p.cursor = len(p.matches) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+p.height {
		p.offset = p.cursor - p.height + 1
	}
}

func (p picker) Init() tea.Cmd { return nil }

func (p picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// prompt and status line
		p.height = max(msg.Height-2, 1)
		p.move(0)
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return p, tea.Quit
		case tea.KeyEnter:
			if len(p.matches) > 0 {
				p.chosen = p.matches[p.cursor]
			}
			return p, tea.Quit
		case tea.KeyUp, tea.KeyCtrlP:
			p.move(-1)
		case tea.KeyDown, tea.KeyCtrlN:
			p.move(1)
		case tea.KeyPgUp:
			p.move(-p.height)
		case tea.KeyPgDown:
			p.move(p.height)
		case tea.KeyBackspace:
			if len(p.query) > 0 {
				p.query = p.query[:len(p.query)-1]
				p.filter()
			}
		case tea.KeyCtrlU:
			p.query = p.query[:0]
			p.filter()
		case tea.KeyRunes, tea.KeySpace:
			p.query = append(p.query, msg.Runes...)
			p.filter()
		}
	}
	return p, nil
}

func (p picker) View() string {
	var b strings.Builder
	b.WriteString(promptStyle.Render(p.prompt+"> ") + string(p.query) + "\n")
	end := min(p.offset+p.height, len(p.matches))
	for i := p.offset; i < end; i++ {
		line := p.items[p.matches[i]]
		if i == p.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(countStyle.Render(fmt.Sprintf("%d/%d", len(p.matches), len(p.items))))
	return b.String()
}
