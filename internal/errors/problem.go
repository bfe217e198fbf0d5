package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/render"
)

// Problem type URIs
const (
	TypeNotFound         = "/errors/not-found"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypeUpstream         = "/errors/upstream-unavailable"
	TypeStorage          = "/errors/storage-failure"
	TypeValidation       = "/errors/validation-failed"
	TypeInternal         = "/errors/internal-server-error"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Extensions are flattened into the JSON object
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON includes extensions alongside the standard members
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, 5+len(pd.Extensions))
	for k, v := range pd.Extensions {
		data[k] = v
	}

	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = make(map[string]interface{})
	}
	pd.Extensions[key] = value
	return pd
}

// ProblemFromError maps err to a problem. AppError kinds pick the status
// and type; anything else is an internal error with a generic detail.
func ProblemFromError(err error, instance string) *ProblemDetails {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error", "An unexpected error occurred", instance)
	}

	var pd *ProblemDetails
	switch appErr.Type {
	case ErrTypeUpstream, ErrTypeParsing:
		pd = NewProblemDetails(http.StatusBadGateway, TypeUpstream, "Upstream Unavailable", appErr.Message, instance)
	case ErrTypeStorage:
		pd = NewProblemDetails(http.StatusInternalServerError, TypeStorage, "Storage Failure", appErr.Message, instance)
	case ErrTypeValidation, ErrTypeConfig:
		pd = NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", appErr.Message, instance)
	default:
		pd = NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error", appErr.Message, instance)
	}
	pd.WithExtension("error_type", string(appErr.Type))
	return pd
}
