package contentbroker

import (
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

// CorrelationIDAttribute is the message attribute carrying the request's
// correlation id on both the request and reply legs.
const CorrelationIDAttribute = "correlation_id"

// ContentRequest asks a sub-domain to materialize the payload for a bundle.
// The correlation id is the bundle id; the reply is routed back by it.
type ContentRequest struct {
	CorrelationID   string               `json:"correlation_id"`
	ContentType     string               `json:"content_type"`
	ResponseFormat  enums.ResponseFormat `json:"response_format"`
	ResponseVersion int                  `json:"response_version"`
}

// ContentReply is the sub-domain's answer: either a content URI or an error
// reason with a human-readable description.
type ContentReply struct {
	CorrelationID string              `json:"correlation_id"`
	ContentURI    string              `json:"content_uri,omitempty"`
	Reason        enums.ContentErrorReason `json:"reason,omitempty"`
	Description   string              `json:"description,omitempty"`
}

// Failed reports whether the reply carries an application-level error
// instead of content.
func (r ContentReply) Failed() bool {
	return r.Reason != ""
}

// BundleContent is the resolved content reference handed back to the
// orchestrator.
type BundleContent struct {
	URI string
}
