package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind tags the three shapes the contest API can return. The shape is
// decided exactly once, at the fetch boundary, so downstream code matches on
// the tag instead of re-inspecting the body.
type PayloadKind string

const (
	// KindRecords is a well-formed JSON array of contest records. This is
	// the only cacheable shape; a zero-length array is still KindRecords,
	// so a legitimate "empty list" stays distinguishable from "nothing
	// fetched yet".
	KindRecords PayloadKind = "records"

	// KindStructuredError is the upstream {"detail": …} error object. It
	// signals the queried entity does not exist for this lookup and is
	// never cached, so the entry can be retried once it exists upstream.
	KindStructuredError PayloadKind = "structured_error"

	// KindEmpty is an absent or null body.
	KindEmpty PayloadKind = "empty"
)

// ContestRecord is one participant's row in a contest record list. Fields
// are pointers because the upstream omits or nulls them freely; absent
// values flow through to ranking as negative infinity.
type ContestRecord struct {
	Rank                  *int     `json:"rank"`
	OldRating             *float64 `json:"old_rating"`
	NewRating             *float64 `json:"new_rating"`
	DeltaRating           *float64 `json:"delta_rating"`
	AttendedContestsCount *int     `json:"attendedContestsCount"`
}

// Payload is the tagged union produced by the fetch layer.
type Payload struct {
	Kind    PayloadKind
	Records []ContestRecord
	// Message holds the structured error detail when Kind is
	// KindStructuredError.
	Message string
}

// structuredError mirrors the upstream error body.
type structuredError struct {
	Detail string `json:"detail"`
}

// decodePayload classifies a response body into the tagged union.
// statusOK reports whether the HTTP status was 2xx; a structured error body
// overrides a failing status, matching the upstream convention of returning
// {"detail": …} with 404.
func decodePayload(locator string, body []byte, statusOK bool, status int) (*Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if !statusOK {
			return nil, &Error{
				Class:   ClassTransport,
				Locator: locator,
				Message: fmt.Sprintf("unexpected status %d", status),
			}
		}
		return &Payload{Kind: KindEmpty}, nil
	}

	switch trimmed[0] {
	case '[':
		var records []ContestRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, &Error{
				Class:   ClassMalformed,
				Locator: locator,
				Message: "malformed record list",
				Err:     err,
			}
		}
		if !statusOK {
			return nil, &Error{
				Class:   ClassTransport,
				Locator: locator,
				Message: fmt.Sprintf("unexpected status %d", status),
			}
		}
		return &Payload{Kind: KindRecords, Records: records}, nil

	case '{':
		var se structuredError
		if err := json.Unmarshal(trimmed, &se); err == nil && se.Detail != "" {
			return &Payload{Kind: KindStructuredError, Message: se.Detail}, nil
		}
		if !statusOK {
			return nil, &Error{
				Class:   ClassTransport,
				Locator: locator,
				Message: fmt.Sprintf("unexpected status %d", status),
			}
		}
		return nil, &Error{
			Class:   ClassMalformed,
			Locator: locator,
			Message: "object body without detail field",
		}

	default:
		return nil, &Error{
			Class:   ClassMalformed,
			Locator: locator,
			Message: "unrecognized body shape",
		}
	}
}
