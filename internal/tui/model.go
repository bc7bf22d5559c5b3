package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docquery/internal/domain"
)

// QueryPort is the TUI-facing subset of the query engine.
type QueryPort interface {
	QueryDocuments(ctx context.Context, query string, opts domain.QueryOptions) domain.QueryAnswer
}

// Model is the Bubble Tea model for the interactive query console.
type Model struct {
	engine    QueryPort
	opts      domain.QueryOptions
	input     textinput.Model
	viewport  viewport.Model
	answer    *domain.QueryAnswer
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a console over the engine. The summary line, if non-empty, is
// shown under the header (usually the ingest summary of the loaded document).
func New(engine QueryPort, opts domain.QueryOptions, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the loaded documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{engine: engine, opts: opts, input: ti, viewport: vp, summary: summary, status: "Ready."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and query boxes
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				answer := m.engine.QueryDocuments(context.Background(), q, m.opts)
				m.answer = &answer
				m.cursor = 0
				m.lastQuery = q
				m.status = fmt.Sprintf("confidence %.2f  sources %d  %dms",
					answer.Confidence, len(answer.Sources), answer.ProcessingTimeMs)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "down":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Sources)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answer.Sources)) % len(m.answer.Sources)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the console layout with the current answer and source.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Query")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answer := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	parts := []string{m.answer.Response}
	if len(m.answer.Sources) > 0 {
		s := m.answer.Sources[m.cursor]
		title := fmt.Sprintf("Source %d/%d  score=%.2f", m.cursor+1, len(m.answer.Sources), s.Score)
		if s.Fallback {
			title += "  (full document)"
		}
		body := highlightBestSentence(s.Content, m.lastQuery)
		parts = append(parts, sourceTitleStyle.Render(title), body)
	}
	return strings.Join(parts, "\n\n")
}

var (
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sourceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe       = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
