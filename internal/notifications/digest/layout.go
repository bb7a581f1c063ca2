// Package digest renders the weekly reminder email. One embedded template
// serves every layout: a maintenance-only digest, an administrative-only
// digest, and a combined digest carrying both sections.
package digest

import (
	"fmt"
	"time"

	"garasiku/internal/types"
)

// Layout selects which sections a digest contains.
type Layout string

const (
	LayoutMaintenance    Layout = "maintenance"
	LayoutAdministrative Layout = "administrative"
	LayoutCombined       Layout = "combined"
)

// Valid reports whether l is one of the known layouts.
func (l Layout) Valid() bool {
	switch l {
	case LayoutMaintenance, LayoutAdministrative, LayoutCombined:
		return true
	}
	return false
}

// Digest is the input to Render. Sections absent from the layout are ignored.
type Digest struct {
	Layout         Layout
	IntervalDays   int
	Maintenance    []types.DueTask
	Administrative []types.DueTask
}

// TaskCount is the number of rows the layout will render.
func (d Digest) TaskCount() int {
	switch d.Layout {
	case LayoutMaintenance:
		return len(d.Maintenance)
	case LayoutAdministrative:
		return len(d.Administrative)
	default:
		return len(d.Maintenance) + len(d.Administrative)
	}
}

// sectionText holds the fixed Indonesian copy of one section.
type sectionText struct {
	heading    string
	intro      string
	typeHeader string
	dateHeader string
	empty      string
}

var (
	maintenanceText = sectionText{
		heading:    "🚗 To-do Servis",
		intro:      "Berikut adalah ringkasan tugas servis yang telah dijadwalkan dalam %d hari ke depan.",
		typeHeader: "Tipe Servis",
		dateHeader: "Jadwal Servis",
		empty:      "Tidak ada to-do servis yang telah dijadwalkan dalam %d hari ke depan.",
	}
	administrativeText = sectionText{
		heading:    "📄 To-do Administrasi",
		intro:      "Berikut adalah ringkasan tugas administrasi yang akan jatuh tempo dalam %d hari ke depan.",
		typeHeader: "Tipe Administrasi",
		dateHeader: "Jatuh Tempo",
		empty:      "Tidak ada to-do administrasi yang jatuh tempo dalam %d hari ke depan.",
	}
)

// section and row are the template view model.
type section struct {
	Heading    string
	Intro      string
	TypeHeader string
	DateHeader string
	Empty      string
	Rows       []row
}

type row struct {
	Ticket    string
	TypeLabel string
	Vehicle   string
	Date      string
}

type view struct {
	Sections []section
}

func buildSection(text sectionText, tasks []types.DueTask, days int, loc *time.Location) section {
	s := section{
		Heading:    text.heading,
		Intro:      fmt.Sprintf(text.intro, days),
		TypeHeader: text.typeHeader,
		DateHeader: text.dateHeader,
		Empty:      fmt.Sprintf(text.empty, days),
	}
	for _, t := range tasks {
		s.Rows = append(s.Rows, row{
			Ticket:    t.Ticket(),
			TypeLabel: t.TaskType().Label(),
			Vehicle:   t.VehicleLabel(),
			Date:      FormatDate(t.DueAt(), loc),
		})
	}
	return s
}
