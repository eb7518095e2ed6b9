package cli

import (
	"strings"

	"github.com/calvinalkan/tasktree/internal/tree"

	"github.com/mattn/go-runewidth"
)

const (
	shortIDLen       = 8
	indentWidth      = 2
	maxTitleColWidth = 60
)

// renderTree writes one line per node in pre-order:
//
//	<short id>  <indent><box> <description>  <STATUS>  [project] [tags] [due:..] [wait:..]
//
// Descriptions are padded (or truncated) to a common display width so the
// status column lines up for wide characters too.
func renderTree(t *tree.Store) string {
	type line struct {
		id     string
		title  string
		status string
		extra  string
	}

	var (
		lines []line
		width int
	)

	t.Walk(func(_ tree.Handle, depth int, row tree.Row) {
		title := strings.Repeat(" ", depth*indentWidth) + checkbox(row) + " " + row.Description

		l := line{
			id:     shortID(row.ID),
			title:  title,
			status: row.Status,
			extra:  extras(row),
		}

		width = max(width, runewidth.StringWidth(title))
		lines = append(lines, l)
	})

	width = min(width, maxTitleColWidth)

	var b strings.Builder

	for _, l := range lines {
		title := runewidth.Truncate(l.title, width, "…")

		b.WriteString(l.id)
		b.WriteString("  ")
		b.WriteString(runewidth.FillRight(title, width))
		b.WriteString("  ")
		b.WriteString(l.status)

		if l.extra != "" {
			b.WriteString("  ")
			b.WriteString(l.extra)
		}

		b.WriteString("\n")
	}

	return b.String()
}

func checkbox(row tree.Row) string {
	switch {
	case row.Deleted:
		return "[-]"
	case row.Completed:
		return "[x]"
	default:
		return "[ ]"
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}

	return id[:shortIDLen]
}

func extras(row tree.Row) string {
	var parts []string

	if row.Project != "" {
		parts = append(parts, "project:"+row.Project)
	}

	if row.Tags != "" {
		parts = append(parts, "tags:"+strings.ReplaceAll(row.Tags, ", ", ","))
	}

	if row.Due != "" {
		parts = append(parts, "due:"+row.Due)
	}

	if row.Wait != "" {
		parts = append(parts, "wait:"+row.Wait)
	}

	return strings.Join(parts, " ")
}
