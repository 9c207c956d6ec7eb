package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/event"
	"github.com/kbukum/streamkit/workflow"
)

// printer renders stream output. Logs go to stderr; printer output is the
// command's stdout.
type printer struct {
	w io.Writer

	title lipgloss.Style
	label lipgloss.Style
	dim   lipgloss.Style
	text  lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
}

func newPrinter(w io.Writer, noColor bool) *printer {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return &printer{
		w:     w,
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		label: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Width(16),
		dim:   r.NewStyle().Foreground(lipgloss.Color("240")),
		text:  r.NewStyle().Foreground(lipgloss.Color("252")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("46")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("214")),
		bad:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

func (p *printer) line(parts ...string) {
	fmt.Fprintln(p.w, strings.Join(parts, " "))
}

// event prints one frame event: time, type, id and data.
func (p *printer) event(ev event.Event) {
	parts := []string{
		p.dim.Render(ev.Timestamp.Format("15:04:05.000")),
		p.label.Render(ev.Type),
	}
	if ev.ID != "" {
		parts = append(parts, p.dim.Render("id="+ev.ID))
	}
	if data := formatData(ev.Data); data != "" {
		parts = append(parts, p.text.Render(data))
	}
	p.line(parts...)
}

func formatData(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprint(d)
		}
		return string(b)
	}
}

func (p *printer) status(s event.Status) {
	style := p.dim
	switch s {
	case event.StatusOpen:
		style = p.ok
	case event.StatusConnecting:
		style = p.warn
	case event.StatusError:
		style = p.bad
	}
	p.line(style.Render("● " + s.String()))
}

func (p *printer) failure(d event.ErrorData) {
	msg := p.bad.Render("error") + " " + d.Err.Error()
	if d.Retrying {
		msg += p.dim.Render(fmt.Sprintf(" (retry %d in %s)", d.Attempts, d.NextDelay))
	}
	p.line(msg)
}

// workflowHandlers streams answer text as it arrives. With verbose set,
// node and lifecycle events are printed on their own lines.
func (p *printer) workflowHandlers(verbose bool) workflow.Handlers {
	h := workflow.Handlers{
		OnTextChunk: func(fragment, _ string) {
			fmt.Fprint(p.w, fragment)
		},
		OnComplete: func() {
			fmt.Fprintln(p.w)
		},
		OnFile: func(f workflow.File) {
			p.line(p.label.Render("file"), p.text.Render(f.URL))
		},
		OnError: func(err error) {
			p.line(p.warn.Render("warning"), err.Error())
		},
	}
	if verbose {
		h.OnWorkflowStarted = func(ev workflow.Event) {
			p.line(p.title.Render("workflow started"), p.dim.Render(ev.WorkflowRunID))
		}
		h.OnNodeStarted = func(ev workflow.Event) {
			p.line(p.dim.Render("→ node"), ev.DataString("title"))
		}
		h.OnNodeFinished = func(ev workflow.Event) {
			p.line(p.dim.Render("✓ node"), ev.DataString("title"))
		}
	}
	return h
}

func (p *printer) routes(url string, routes []component.Route) {
	p.line(p.title.Render("mock server"), p.ok.Render(url))
	for _, r := range routes {
		p.line(" ", p.label.Width(26).Render(r.String()), p.dim.Render(r.Handler))
	}
}
