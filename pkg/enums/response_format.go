package enums

import "fmt"

// ResponseFormat is the document encoding a market operator asks bundle
// content to be rendered in.
type ResponseFormat string

const (
	ResponseFormatXML  ResponseFormat = "xml"
	ResponseFormatJSON ResponseFormat = "json"
)

func (f ResponseFormat) IsValid() bool {
	return f == ResponseFormatXML || f == ResponseFormatJSON
}

// ParseResponseFormat converts raw strings into ResponseFormat.
func ParseResponseFormat(value string) (ResponseFormat, error) {
	switch ResponseFormat(value) {
	case ResponseFormatXML:
		return ResponseFormatXML, nil
	case ResponseFormatJSON:
		return ResponseFormatJSON, nil
	}
	return "", fmt.Errorf("invalid response format %q", value)
}
