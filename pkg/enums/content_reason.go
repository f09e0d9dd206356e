package enums

// ContentErrorReason is the failure code a sub-domain attaches to a content
// reply it cannot fulfil.
type ContentErrorReason string

const (
	ContentErrorDatasetNotFound     ContentErrorReason = "DatasetNotFound"
	ContentErrorDatasetNotAvailable ContentErrorReason = "DatasetNotAvailable"
	ContentErrorInternalError       ContentErrorReason = "InternalError"
)

func (r ContentErrorReason) IsValid() bool {
	switch r {
	case ContentErrorDatasetNotFound, ContentErrorDatasetNotAvailable, ContentErrorInternalError:
		return true
	}
	return false
}
