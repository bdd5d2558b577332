package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var statusOrder = []string{"todo", "in_progress", "done"}

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GenerateProjectReport(ctx context.Context, report ProjectReport) (io.Reader, error) {
	if strings.TrimSpace(report.ProjectName) == "" {
		return nil, fmt.Errorf("project report requires a project name")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	addHeader(m, report)
	addSummary(m, report)
	addTasks(m, report.Tasks)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func addHeader(m core.Maroto, report ProjectReport) {
	title := report.ProjectName
	if report.ProjectKey != "" {
		title = report.ProjectKey + " · " + title
	}
	m.AddRow(12,
		text.NewCol(12, title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(22,
		col.New(6).Add(
			text.New(report.OrgName, props.Text{Style: fontstyle.Bold}),
			text.New("Status: "+orDash(report.Status), props.Text{Top: 5}),
			text.New("Start: "+orDash(report.StartDate), props.Text{Top: 10}),
			text.New("Due: "+orDash(report.DueDate), props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Generated "+report.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), props.Text{
				Size:  8,
				Align: align.Right,
			}),
		),
	)
	if desc := strings.TrimSpace(report.Description); desc != "" {
		m.AddRow(14, text.NewCol(12, desc, props.Text{Size: 9}))
	}
}

func addSummary(m core.Maroto, report ProjectReport) {
	m.AddRow(10, text.NewCol(12, "Tasks by status", props.Text{Style: fontstyle.Bold, Top: 3}))

	var total int64
	cols := make([]core.Col, 0, len(statusOrder)+1)
	for _, status := range orderedStatuses(report.StatusCounts) {
		count := report.StatusCounts[status]
		total += count
		cols = append(cols, text.NewCol(3, fmt.Sprintf("%s: %d", statusLabel(status), count), props.Text{Size: 9}))
	}
	cols = append(cols, text.NewCol(3, fmt.Sprintf("Total: %d", total), props.Text{Size: 9, Style: fontstyle.Bold}))
	m.AddRow(8, cols...)
	m.AddRow(4, line.NewCol(12))
}

func addTasks(m core.Maroto, tasks []ReportTask) {
	if len(tasks) == 0 {
		m.AddRow(10, text.NewCol(12, "No tasks yet.", props.Text{Size: 9, Style: fontstyle.Italic}))
		return
	}

	header := props.Text{Style: fontstyle.Bold, Size: 9}
	m.AddRow(8,
		text.NewCol(5, "Title", header),
		text.NewCol(2, "Status", header),
		text.NewCol(2, "Priority", header),
		text.NewCol(2, "Assignee", header),
		text.NewCol(1, "Due", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, task := range tasks {
		m.AddRow(7,
			text.NewCol(5, task.Title, props.Text{Size: 8}),
			text.NewCol(2, statusLabel(task.Status), props.Text{Size: 8}),
			text.NewCol(2, orDash(task.Priority), props.Text{Size: 8}),
			text.NewCol(2, orDash(task.Assignee), props.Text{Size: 8}),
			text.NewCol(1, orDash(task.DueDate), props.Text{Size: 8, Align: align.Right}),
		)
	}
}

// orderedStatuses lists known statuses first, then any others by name.
func orderedStatuses(counts map[string]int64) []string {
	out := make([]string, 0, len(counts))
	seen := map[string]bool{}
	for _, status := range statusOrder {
		out = append(out, status)
		seen[status] = true
	}
	var extra []string
	for status := range counts {
		if !seen[status] {
			extra = append(extra, status)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func statusLabel(status string) string {
	switch status {
	case "todo":
		return "To do"
	case "in_progress":
		return "In progress"
	case "done":
		return "Done"
	default:
		return orDash(status)
	}
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
