// Package actor models market-participant identity. The hub is mid-migration
// from legacy GLN numbers to GUID actor ids, so an identifier is a tagged
// union of the two and lookups resolve GUID-first with a GLN fallback.
package actor

import (
	"fmt"

	"github.com/google/uuid"
)

type Kind string

const (
	KindGUID Kind = "guid"
	KindGLN  Kind = "gln"
)

const glnLength = 13

// ID identifies a market participant by either a GUID or a legacy GLN.
type ID struct {
	kind Kind
	guid uuid.UUID
	gln  string
}

// FromGUID wraps a new-style actor id.
func FromGUID(id uuid.UUID) ID {
	return ID{kind: KindGUID, guid: id}
}

// FromGLN wraps a legacy GLN; a GLN is exactly 13 digits, the last being the
// GS1 check digit.
func FromGLN(gln string) (ID, error) {
	if len(gln) != glnLength {
		return ID{}, fmt.Errorf("gln must be %d digits, got %d", glnLength, len(gln))
	}
	for _, c := range gln {
		if c < '0' || c > '9' {
			return ID{}, fmt.Errorf("gln must be numeric, got %q", gln)
		}
	}
	if gln[glnLength-1] != checkDigit(gln) {
		return ID{}, fmt.Errorf("gln %q has an invalid check digit", gln)
	}
	return ID{kind: KindGLN, gln: gln}, nil
}

// checkDigit computes the GS1 mod-10 check digit over the first 12 digits:
// weights alternate 1 and 3 from the left, and the check digit rounds the
// weighted sum up to the next multiple of ten.
func checkDigit(gln string) byte {
	sum := 0
	for i := 0; i < glnLength-1; i++ {
		digit := int(gln[i] - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	return byte('0' + (10-sum%10)%10)
}

// Parse accepts either identity encoding.
func Parse(value string) (ID, error) {
	if parsed, err := uuid.Parse(value); err == nil {
		return FromGUID(parsed), nil
	}
	id, err := FromGLN(value)
	if err != nil {
		return ID{}, fmt.Errorf("value %q is neither a guid nor a gln", value)
	}
	return id, nil
}

func (i ID) Kind() Kind { return i.kind }

// GUID returns the new-style id when present.
func (i ID) GUID() (uuid.UUID, bool) {
	if i.kind != KindGUID {
		return uuid.Nil, false
	}
	return i.guid, true
}

// GLN returns the legacy number when present.
func (i ID) GLN() (string, bool) {
	if i.kind != KindGLN {
		return "", false
	}
	return i.gln, true
}

func (i ID) IsZero() bool { return i.kind == "" }

func (i ID) String() string {
	switch i.kind {
	case KindGUID:
		return i.guid.String()
	case KindGLN:
		return i.gln
	default:
		return ""
	}
}
