// Package tui is the interactive search surface: type a query, get the
// top matching articles across every processed feed.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dongsuo/ask-rss/internal/processor"
)

// Searcher runs one semantic query.
type Searcher interface {
	SemanticSearch(ctx context.Context, query, sourceURL string, topK int) ([]processor.SearchResult, error)
}

type resultsMsg struct {
	query   string
	results []processor.SearchResult
	err     error
}

type App struct {
	searcher  Searcher
	sourceURL string
	topK      int

	input   textinput.Model
	spinner spinner.Model

	searching bool
	query     string
	results   []processor.SearchResult
	err       error
	width     int
}

// RunOpts holds the parameters for launching the search view.
type RunOpts struct {
	Searcher  Searcher
	SourceURL string
	TopK      int
}

func NewApp(opts RunOpts) *App {
	ti := textinput.New()
	ti.Placeholder = "Ask your feeds..."
	ti.Prompt = promptStyle.Render("? ")
	ti.CharLimit = 200
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	return &App{
		searcher:  opts.Searcher,
		sourceURL: opts.SourceURL,
		topK:      opts.TopK,
		input:     ti,
		spinner:   sp,
	}
}

func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return a, tea.Quit
		case "enter":
			query := strings.TrimSpace(a.input.Value())
			if query == "" || a.searching {
				return a, nil
			}
			a.searching = true
			a.err = nil
			return a, tea.Batch(a.spinner.Tick, a.search(query))
		}

	case resultsMsg:
		a.searching = false
		a.query = msg.query
		a.results = msg.results
		a.err = msg.err
		return a, nil

	case spinner.TickMsg:
		if !a.searching {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) search(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		results, err := a.searcher.SemanticSearch(ctx, query, a.sourceURL, a.topK)
		return resultsMsg{query: query, results: results, err: err}
	}
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("ask-rss"))
	b.WriteString("\n\n")
	b.WriteString(a.input.View())
	b.WriteString("\n\n")

	switch {
	case a.searching:
		b.WriteString(a.spinner.View() + " searching...\n")
	case a.err != nil:
		b.WriteString(errStyle.Render("error: "+a.err.Error()) + "\n")
	case a.query != "" && len(a.results) == 0:
		b.WriteString(resultMetaStyle.Render("No matching articles.") + "\n")
	default:
		for i, r := range a.results {
			b.WriteString(renderResult(i, r, a.width))
		}
	}

	b.WriteString("\n" + helpStyle.Render("enter: search • esc: quit"))
	return b.String()
}

func renderResult(i int, r processor.SearchResult, width int) string {
	var b strings.Builder
	score := resultScoreStyle.Render(fmt.Sprintf("%.3f", r.Score))
	b.WriteString(fmt.Sprintf("%d. %s  %s\n", i+1, resultTitleStyle.Render(r.Title), score))

	meta := r.Link
	if r.Published != "" {
		meta += "  " + r.Published
	}
	b.WriteString("   " + resultMetaStyle.Render(meta) + "\n")

	summary := r.Summary
	max := 160
	if width > 20 && width < 170 {
		max = width - 10
	}
	if len(summary) > max {
		summary = truncate(summary, max)
	}
	b.WriteString(resultSummaryStyle.Render(summary) + "\n\n")
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// Run launches the search view and blocks until the user quits.
func Run(opts RunOpts) error {
	p := tea.NewProgram(NewApp(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
