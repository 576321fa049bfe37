// Package envelope implements the chunk transport record.
//
// Each symbol on the visual channel carries exactly one envelope: a compact
// JSON object with four fields:
//
//	p  part number (1-based)
//	t  total parts
//	f  source file base name
//	d  payload bytes, base64
//
// The record has no version field; both ends agree on the chunk size
// out-of-band. Decode failures are classified, never panicked, so the
// assembler can tell a corrupted capture from a third-party symbol that
// happens to share the channel.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Envelope is one addressable unit of a transfer.
type Envelope struct {
	// Part is the 1-based part number, unique within a session.
	Part int
	// Total is the part count, constant across the session.
	Total int
	// Name is the base name of the source file.
	Name string
	// Payload is the raw chunk bytes. Every part except the last carries
	// exactly the session chunk size.
	Payload []byte
}

// CodecErrorKind classifies envelope decode errors.
type CodecErrorKind int

const (
	// KindMalformed indicates the text is not a well-formed JSON record.
	KindMalformed CodecErrorKind = iota
	// KindForeign indicates a structurally valid record that is not one of
	// ours (missing or mistyped transfer fields). Ignorable, not fatal.
	KindForeign
	// KindBadNumber indicates a part or total field that is not a positive
	// integer, or a part outside 1..total.
	KindBadNumber
	// KindBadPayload indicates a payload that fails base64 decoding.
	KindBadPayload
)

// CodecError is a classified envelope decode error.
type CodecError struct {
	Kind CodecErrorKind
	Msg  string
	Err  error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// IsForeign reports whether err marks a record from an unrelated producer.
// The assembler drops foreign records silently; everything else it logs.
func IsForeign(err error) bool {
	if ce, ok := err.(*CodecError); ok {
		return ce.Kind == KindForeign
	}
	return false
}

// wireEnvelope is the on-channel JSON shape. Pointer fields distinguish
// "absent" from zero values during foreign-record detection.
type wireEnvelope struct {
	Part  *int    `json:"p"`
	Total *int    `json:"t"`
	Name  *string `json:"f"`
	Data  *string `json:"d"`
}

// Encode serializes an envelope to its transport string.
func Encode(e *Envelope) (string, error) {
	if e.Part < 1 || e.Total < 1 || e.Part > e.Total {
		return "", &CodecError{
			Kind: KindBadNumber,
			Msg:  fmt.Sprintf("part %d out of range 1..%d", e.Part, e.Total),
		}
	}
	data := base64.StdEncoding.EncodeToString(e.Payload)
	w := wireEnvelope{
		Part:  &e.Part,
		Total: &e.Total,
		Name:  &e.Name,
		Data:  &data,
	}
	out, err := json.Marshal(w)
	if err != nil {
		return "", &CodecError{Kind: KindMalformed, Msg: "marshal envelope", Err: err}
	}
	return string(out), nil
}

// Decode parses a transport string back into an envelope.
//
// Errors:
//   - *CodecError with Kind=KindMalformed: not a JSON record
//   - *CodecError with Kind=KindForeign: valid JSON, not our protocol
//   - *CodecError with Kind=KindBadNumber: non-positive or inconsistent counters
//   - *CodecError with Kind=KindBadPayload: payload fails base64 decoding
func Decode(text string) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
			// A record whose fields carry the wrong types belongs to some
			// other producer, except numeric fields holding non-integer
			// values, which are protocol violations.
			if typeErr.Field == "p" || typeErr.Field == "t" {
				return nil, &CodecError{
					Kind: KindBadNumber,
					Msg:  fmt.Sprintf("field %q is not an integer", typeErr.Field),
					Err:  err,
				}
			}
			return nil, &CodecError{Kind: KindForeign, Msg: "record field types do not match", Err: err}
		}
		return nil, &CodecError{Kind: KindMalformed, Msg: "malformed transport record", Err: err}
	}

	if w.Part == nil || w.Total == nil || w.Name == nil || w.Data == nil {
		return nil, &CodecError{Kind: KindForeign, Msg: "record is missing transfer fields"}
	}
	if *w.Part < 1 || *w.Total < 1 || *w.Part > *w.Total {
		return nil, &CodecError{
			Kind: KindBadNumber,
			Msg:  fmt.Sprintf("part %d out of range 1..%d", *w.Part, *w.Total),
		}
	}

	payload, err := base64.StdEncoding.DecodeString(*w.Data)
	if err != nil {
		return nil, &CodecError{Kind: KindBadPayload, Msg: "payload alphabet decode failed", Err: err}
	}

	return &Envelope{
		Part:    *w.Part,
		Total:   *w.Total,
		Name:    *w.Name,
		Payload: payload,
	}, nil
}
