package store

import "strings"

// Filter is the parsed form of the SQLite store's filter language:
// whitespace-separated terms, all of which must match.
//
//	project:<name>  exact project
//	+tag            has tag
//	-tag            lacks tag
//	anything else   case-insensitive description substring
type Filter struct {
	Project     string
	WithTags    []string
	WithoutTags []string
	Words       []string
}

// ParseFilter parses a filter expression. It never fails; unknown syntax is
// treated as description words.
func ParseFilter(expr string) Filter {
	var f Filter

	for _, term := range strings.Fields(expr) {
		switch {
		case strings.HasPrefix(term, "project:") && len(term) > len("project:"):
			f.Project = strings.TrimPrefix(term, "project:")
		case strings.HasPrefix(term, "+") && len(term) > 1:
			f.WithTags = append(f.WithTags, term[1:])
		case strings.HasPrefix(term, "-") && len(term) > 1:
			f.WithoutTags = append(f.WithoutTags, term[1:])
		default:
			f.Words = append(f.Words, term)
		}
	}

	return f
}

// sql renders the filter as WHERE clauses over the tasks table.
func (f Filter) sql() ([]string, []any) {
	var (
		where []string
		args  []any
	)

	if f.Project != "" {
		where = append(where, "project = ?")
		args = append(args, f.Project)
	}

	for _, tag := range f.WithTags {
		where = append(where, "EXISTS (SELECT 1 FROM task_tags WHERE task_uuid = tasks.uuid AND tag = ?)")
		args = append(args, tag)
	}

	for _, tag := range f.WithoutTags {
		where = append(where, "NOT EXISTS (SELECT 1 FROM task_tags WHERE task_uuid = tasks.uuid AND tag = ?)")
		args = append(args, tag)
	}

	for _, word := range f.Words {
		where = append(where, "instr(lower(description), ?) > 0")
		args = append(args, strings.ToLower(word))
	}

	return where, args
}
