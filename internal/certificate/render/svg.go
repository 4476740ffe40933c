package render

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// svgTemplate is a minimal default certificate face. Deployments with a
// branded template replace the whole Renderer, not this file.
const svgTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="1200" height="800" viewBox="0 0 1200 800">
  <rect width="1200" height="800" fill="#0f172a"/>
  <rect x="40" y="40" width="1120" height="720" fill="none" stroke="#eab308" stroke-width="4"/>
  <text x="600" y="180" text-anchor="middle" font-size="48" fill="#f8fafc">Certificate of Completion</text>
  <text x="600" y="330" text-anchor="middle" font-size="64" fill="#eab308">{{.LearnerName}}</text>
  <text x="600" y="430" text-anchor="middle" font-size="36" fill="#f8fafc">has completed</text>
  <text x="600" y="500" text-anchor="middle" font-size="44" fill="#f8fafc">{{.CourseTitle}}</text>
  <text x="600" y="590" text-anchor="middle" font-size="28" fill="#94a3b8">{{.CompletionDate}} · {{.Issuer}}</text>
  <text x="600" y="700" text-anchor="middle" font-size="16" fill="#64748b">{{.VerificationHash}}</text>
</svg>`

// SVGRenderer renders the default certificate face from a text template.
type SVGRenderer struct {
	tmpl *template.Template
}

// NewSVGRenderer parses the built-in template.
func NewSVGRenderer() *SVGRenderer {
	return &SVGRenderer{tmpl: template.Must(template.New("certificate").Parse(svgTemplate))}
}

// Render produces the SVG artifact for the certificate record.
func (r *SVGRenderer) Render(_ context.Context, cert Certificate) ([]byte, string, error) {
	if cert.LearnerName == "" || cert.CourseTitle == "" {
		return nil, "", fmt.Errorf("render certificate: learner name and course title are required")
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, cert); err != nil {
		return nil, "", fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), "image/svg+xml", nil
}
