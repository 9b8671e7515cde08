package domain

import dErrors "obligo/pkg/domain-errors"

// PayloadRef points at a submitted artifact: either an uploaded file held by
// the external blob store, or an external link. Exactly one of the two must
// be present; the engine stores the reference and never the bytes.
type PayloadRef struct {
	FileRef string `json:"file_ref,omitempty"`
	LinkURL string `json:"link_url,omitempty"`
}

// Validate enforces the exactly-one invariant.
// Errors: CodeBadRequest when both or neither variant is present.
func (p PayloadRef) Validate() error {
	hasFile := p.FileRef != ""
	hasLink := p.LinkURL != ""
	if hasFile == hasLink {
		return dErrors.New(dErrors.CodeBadRequest,
			"payload must be exactly one of file reference or external link")
	}
	return nil
}

// IsZero reports whether neither variant is set.
func (p PayloadRef) IsZero() bool { return p.FileRef == "" && p.LinkURL == "" }

// Kind returns "file" or "link" for logging and audit records.
func (p PayloadRef) Kind() string {
	if p.FileRef != "" {
		return "file"
	}
	return "link"
}
