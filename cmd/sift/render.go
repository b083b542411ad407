package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/executions"
	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/pagination"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func styleStatus(s string) string {
	switch s {
	case string(executions.StatusCompleted), string(workflows.StatusActive):
		return okStyle.Render(s)
	case string(executions.StatusFailed), string(workflows.StatusError):
		return failStyle.Render(s)
	default:
		return warnStyle.Render(s)
	}
}

func renderWorkflow(w io.Writer, wf *workflows.Workflow) {
	fmt.Fprintln(w, headerStyle.Render(wf.Name))
	fmt.Fprintf(w, "  id:     %s\n", wf.ID)
	fmt.Fprintf(w, "  status: %s\n", styleStatus(string(wf.Status)))
	if wf.ErrorMessage != nil {
		fmt.Fprintf(w, "  error:  %s\n", failStyle.Render(*wf.ErrorMessage))
	}

	names := make(map[string]string, len(wf.Categories))
	for _, c := range wf.Categories {
		names[c.ID] = c.DisplayName
	}

	for _, f := range wf.Configuration.Fields {
		fmt.Fprintf(w, "  field  %-24s %-8s %s%s\n", f.Name, f.Type, dimStyle.Render(names[f.CategoryID]), outdated(f.Outdated))
	}
	for _, t := range wf.Configuration.Tables {
		fmt.Fprintf(w, "  table  %-24s %-8d %s%s\n", t.Name, len(t.Columns), dimStyle.Render(names[t.CategoryID]), outdated(t.Outdated))
	}
}

func outdated(o bool) string {
	if o {
		return " " + warnStyle.Render("(outdated)")
	}
	return ""
}

func renderWorkflows(w io.Writer, page *pagination.PageResult[workflows.Workflow]) {
	if len(page.Data) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no workflows"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Workflows (page %d of %d, %d total)", page.Page, page.TotalPages, page.Total)))
	for _, wf := range page.Data {
		fmt.Fprintf(w, "  %s  %-12s %s\n", wf.ID, styleStatus(string(wf.Status)), wf.Name)
	}
}

func renderExecutions(w io.Writer, execs []executions.Execution) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Queued %d execution(s)", len(execs))))
	for _, e := range execs {
		fmt.Fprintf(w, "  %s  %-10s %s\n", e.ID, styleStatus(string(e.Status)), e.Filename)
	}
}

func renderStatus(w io.Writer, id uuid.UUID, filename string, v executions.StatusView) {
	label := id.String()
	if filename != "" {
		label += "  " + filename
	}
	fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(label), styleStatus(string(v.Status)))

	if v.ErrorMessage != nil {
		fmt.Fprintf(w, "  %s\n", failStyle.Render(*v.ErrorMessage))
	}
	if v.Result != nil {
		renderResult(w, v.Result)
	}
}

func renderResult(w io.Writer, r *schema.ExtractionResult) {
	for _, f := range r.Fields {
		fmt.Fprintf(w, "  %-24s %s\n", f.FieldName, formatValue(f.Value))
	}
	for _, t := range r.Tables {
		fmt.Fprintf(w, "  %-24s %d row(s)\n", t.TableName, len(t.Rows))
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return dimStyle.Render("(not found)")
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
