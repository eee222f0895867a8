package output

import (
	"strings"

	"github.com/sonemaro/linecounter/pkg/filetype"
)

// TypesTable lists file types with their patterns and counters. Counters that
// are not selected are shown in brackets.
func TypesTable(types []*filetype.FileType, withColors bool) string {
	t := &table{
		header:  []string{"File Type", "Patterns", "Counters"},
		numeric: []bool{false, false, false},
	}

	for _, ft := range types {
		counters := make([]string, 0, len(ft.Counters()))
		for _, c := range ft.Counters() {
			if c.Selected {
				counters = append(counters, c.Name)
			} else {
				counters = append(counters, "["+c.Name+"]")
			}
		}
		t.add(ft.Name, strings.Join(ft.Patterns(), " "), strings.Join(counters, ", "))
	}

	var sb strings.Builder
	t.render(&sb, withColors)
	return sb.String()
}
