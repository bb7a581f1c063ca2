package digest

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"garasiku/internal/types"
)

//go:embed templates/digest.html
var templateFS embed.FS

// DefaultIntervalDays is used when a Digest carries no interval.
const DefaultIntervalDays = 30

// Renderer turns task lists into digest HTML. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
	loc  *time.Location
}

// NewRenderer parses the embedded template. Dates render in loc.
func NewRenderer(loc *time.Location) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/digest.html")
	if err != nil {
		return nil, fmt.Errorf("digest: failed to parse template: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{tmpl: tmpl, loc: loc}, nil
}

// Render produces the HTML body for d. Field values are HTML-escaped.
func (r *Renderer) Render(d Digest) (string, error) {
	if !d.Layout.Valid() {
		return "", types.NewAppError(types.ErrCodeReminderRender, fmt.Sprintf("unknown digest layout %q", d.Layout), nil)
	}
	days := d.IntervalDays
	if days <= 0 {
		days = DefaultIntervalDays
	}

	var v view
	if d.Layout != LayoutAdministrative {
		v.Sections = append(v.Sections, buildSection(maintenanceText, d.Maintenance, days, r.loc))
	}
	if d.Layout != LayoutMaintenance {
		v.Sections = append(v.Sections, buildSection(administrativeText, d.Administrative, days, r.loc))
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "digest", v); err != nil {
		return "", types.NewAppError(types.ErrCodeReminderRender, "failed to render digest", err)
	}
	return buf.String(), nil
}

// RenderMaintenanceDigest renders the servis-only digest.
func (r *Renderer) RenderMaintenanceDigest(tasks []types.MaintenanceTask, intervalDays int) (string, error) {
	return r.Render(Digest{
		Layout:       LayoutMaintenance,
		IntervalDays: intervalDays,
		Maintenance:  types.MaintenanceAsDue(tasks),
	})
}

// RenderAdministrativeDigest renders the administrasi-only digest.
func (r *Renderer) RenderAdministrativeDigest(tasks []types.AdministrativeTask, intervalDays int) (string, error) {
	return r.Render(Digest{
		Layout:         LayoutAdministrative,
		IntervalDays:   intervalDays,
		Administrative: types.AdministrativeAsDue(tasks),
	})
}

// RenderCombinedDigest renders both sections under one header, maintenance first.
func (r *Renderer) RenderCombinedDigest(maintenance []types.MaintenanceTask, administrative []types.AdministrativeTask, intervalDays int) (string, error) {
	return r.Render(Digest{
		Layout:         LayoutCombined,
		IntervalDays:   intervalDays,
		Maintenance:    types.MaintenanceAsDue(maintenance),
		Administrative: types.AdministrativeAsDue(administrative),
	})
}
