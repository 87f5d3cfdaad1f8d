package errors

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails is an application/problem+json body (RFC 7807). Extension
// members such as trace_id and error_code are encoded beside the standard
// ones.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

var reservedMembers = map[string]bool{
	"type": true, "title": true, "status": true, "detail": true, "instance": true,
}

// NewProblemDetails builds a problem. An empty title falls back to the
// status text.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	if title == "" {
		title = http.StatusText(status)
	}
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: map[string]interface{}{},
	}
}

// WithExtension sets an extension member. Standard member names are ignored
// when encoding.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = map[string]interface{}{}
	}
	pd.Extensions[key] = value
	return pd
}

// Render implements render.Renderer.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	type standard ProblemDetails
	body, err := json.Marshal((*standard)(pd))
	if err != nil {
		return nil, err
	}

	extra := make(map[string]interface{}, len(pd.Extensions))
	for k, v := range pd.Extensions {
		if !reservedMembers[k] {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return body, nil
	}
	ext, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}

	// {"type":...} + {"trace_id":...} -> {"type":...,"trace_id":...}
	var buf bytes.Buffer
	buf.Grow(len(body) + len(ext))
	buf.Write(body[:len(body)-1])
	buf.WriteByte(',')
	buf.Write(ext[1:])
	return buf.Bytes(), nil
}
