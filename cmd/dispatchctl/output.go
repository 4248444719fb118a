package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/dtroode/fieldops/internal/model"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

const createdLayout = "2006-01-02 15:04"

// printer writes task snapshots in one output format. A printer reused for
// several snapshots separates YAML documents and writes one JSON object per line.
type printer struct {
	w      io.Writer
	format string
	yaml   *yaml.Encoder
	json   *json.Encoder

	header  lipgloss.Style
	id      lipgloss.Style
	created lipgloss.Style
	next    lipgloss.Style
	plain   lipgloss.Style
	status  map[model.TaskStatus]lipgloss.Style
}

type snapshotDoc struct {
	Tasks model.Snapshot `json:"tasks" yaml:"tasks"`
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	p := &printer{w: w, format: format}

	switch format {
	case formatTable:
		r := lipgloss.NewRenderer(w)
		p.header = r.NewStyle().Bold(true)
		p.id = r.NewStyle().Width(38)
		p.created = r.NewStyle().Width(18)
		p.next = r.NewStyle().Width(10).Foreground(lipgloss.Color("#7aa2f7"))
		p.plain = r.NewStyle().Width(13)
		status := p.plain
		p.status = map[model.TaskStatus]lipgloss.Style{
			model.TaskStatusPending:    status.Foreground(lipgloss.Color("#e0af68")),
			model.TaskStatusInProgress: status.Foreground(lipgloss.Color("#7dcfff")),
			model.TaskStatusCompleted:  status.Foreground(lipgloss.Color("#9ece6a")),
		}
	case formatYAML:
		p.yaml = yaml.NewEncoder(w)
		p.yaml.SetIndent(2)
	case formatJSON:
		p.json = json.NewEncoder(w)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	return p, nil
}

func (p *printer) snapshot(tasks model.Snapshot) error {
	if tasks == nil {
		tasks = model.Snapshot{}
	}

	switch p.format {
	case formatYAML:
		return p.yaml.Encode(snapshotDoc{Tasks: tasks})
	case formatJSON:
		return p.json.Encode(snapshotDoc{Tasks: tasks})
	default:
		return p.table(tasks)
	}
}

func (p *printer) table(tasks model.Snapshot) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(p.w, "No tasks.")
		return err
	}

	var b strings.Builder
	b.WriteString(p.header.Render(
		p.id.Render("ID") + p.plain.Render("STATUS") +
			p.created.Render("CREATED") + p.next.UnsetForeground().Render("NEXT") + "TITLE"))
	b.WriteString("\n")

	for _, task := range tasks {
		style, ok := p.status[task.Status]
		if !ok {
			style = p.plain
		}
		b.WriteString(p.id.Render(task.ID))
		b.WriteString(style.Render(string(task.Status)))
		b.WriteString(p.created.Render(task.CreatedAt.Local().Format(createdLayout)))
		b.WriteString(p.next.Render(nextAction(task)))
		b.WriteString(task.Title)
		b.WriteString("\n")
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

// nextAction names the command that moves the task forward, if any.
func nextAction(task model.Task) string {
	switch {
	case !task.Completable():
		return ""
	case model.CanTransition(task.Status, model.TaskStatusInProgress):
		return "start"
	default:
		return "complete"
	}
}
