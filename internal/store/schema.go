package store

import (
	"fmt"
	"strings"
)

// Table describes one table as declared in the database.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
	Rows        int64        `json:"rows"`
}

// Column is a single column definition.
// Type is the declared type as written in the DDL.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"notNull"`
	PrimaryKey bool   `json:"primaryKey"`
	Unique     bool   `json:"unique"`
}

// ForeignKey is a reference from Column to RefTable(RefColumn).
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
}

// Diff compares the expected tables against the described ones and returns
// one line per difference. An empty result means the shapes match.
// Row counts are ignored.
func Diff(want, got []Table) []string {
	var problems []string

	gotByName := make(map[string]Table, len(got))
	for _, t := range got {
		gotByName[strings.ToLower(t.Name)] = t
	}

	for _, w := range want {
		g, ok := gotByName[strings.ToLower(w.Name)]
		if !ok {
			problems = append(problems, fmt.Sprintf("table %s: missing", w.Name))
			continue
		}
		problems = append(problems, diffColumns(w, g)...)
		problems = append(problems, diffForeignKeys(w, g)...)
	}

	return problems
}

func diffColumns(want, got Table) []string {
	var problems []string

	gotCols := make(map[string]Column, len(got.Columns))
	for _, c := range got.Columns {
		gotCols[strings.ToLower(c.Name)] = c
	}
	wantCols := make(map[string]bool, len(want.Columns))

	for _, w := range want.Columns {
		wantCols[strings.ToLower(w.Name)] = true
		g, ok := gotCols[strings.ToLower(w.Name)]
		if !ok {
			problems = append(problems, fmt.Sprintf("table %s: column %s: missing", want.Name, w.Name))
			continue
		}
		if !strings.EqualFold(w.Type, g.Type) {
			problems = append(problems, fmt.Sprintf("table %s: column %s: type %q, want %q", want.Name, w.Name, g.Type, w.Type))
		}
		if w.NotNull != g.NotNull {
			problems = append(problems, fmt.Sprintf("table %s: column %s: not null %t, want %t", want.Name, w.Name, g.NotNull, w.NotNull))
		}
		if w.PrimaryKey != g.PrimaryKey {
			problems = append(problems, fmt.Sprintf("table %s: column %s: primary key %t, want %t", want.Name, w.Name, g.PrimaryKey, w.PrimaryKey))
		}
		if w.Unique != g.Unique {
			problems = append(problems, fmt.Sprintf("table %s: column %s: unique %t, want %t", want.Name, w.Name, g.Unique, w.Unique))
		}
	}

	for _, g := range got.Columns {
		if !wantCols[strings.ToLower(g.Name)] {
			problems = append(problems, fmt.Sprintf("table %s: column %s: unexpected", want.Name, g.Name))
		}
	}

	return problems
}

func diffForeignKeys(want, got Table) []string {
	var problems []string

	key := func(fk ForeignKey) string {
		return strings.ToLower(fk.Column + "->" + fk.RefTable + "." + fk.RefColumn)
	}
	gotKeys := make(map[string]bool, len(got.ForeignKeys))
	for _, fk := range got.ForeignKeys {
		gotKeys[key(fk)] = true
	}
	wantKeys := make(map[string]bool, len(want.ForeignKeys))

	for _, fk := range want.ForeignKeys {
		wantKeys[key(fk)] = true
		if !gotKeys[key(fk)] {
			problems = append(problems, fmt.Sprintf("table %s: foreign key %s -> %s(%s): missing", want.Name, fk.Column, fk.RefTable, fk.RefColumn))
		}
	}
	for _, fk := range got.ForeignKeys {
		if !wantKeys[key(fk)] {
			problems = append(problems, fmt.Sprintf("table %s: foreign key %s -> %s(%s): unexpected", want.Name, fk.Column, fk.RefTable, fk.RefColumn))
		}
	}

	return problems
}
