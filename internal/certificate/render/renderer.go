// Package render turns a certificate data record into an image artifact. The
// visual template is an external concern; the pipeline treats any Renderer as
// an opaque collaborator that yields bytes plus a MIME type.
package render

import "context"

// Certificate is the data record handed to the renderer.
type Certificate struct {
	LearnerName      string
	CourseTitle      string
	CompletionDate   string
	VerificationHash string
	Issuer           string
}

// Renderer rasterizes a certificate record.
type Renderer interface {
	Render(ctx context.Context, cert Certificate) (payload []byte, mimeType string, err error)
}
