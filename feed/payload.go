package feed

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/kbukum/changefeed/errors"
)

// PayloadType discriminates the wire envelope.
type PayloadType string

const (
	PayloadChange PayloadType = "change"
	PayloadError  PayloadType = "error"
)

// Payload is a raw item produced by a source: either a change body or an
// error body. Every transport carries it in the same JSON envelope:
//
//	{"type":"change","data":{"old_val":...,"new_val":...}}
//	{"type":"error","error":{"code":"FEED_ABORTED","message":"Changefeed aborted (...)."}}
type Payload struct {
	Type  PayloadType          `json:"type"`
	Data  json.RawMessage      `json:"data,omitempty"`
	Error *apperrors.ErrorBody `json:"error,omitempty"`
}

// ChangePayload wraps a change record.
func ChangePayload(rec ChangeRecord) (Payload, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return Payload{}, apperrors.MalformedPayload(err)
	}
	return Payload{Type: PayloadChange, Data: data}, nil
}

// ErrorPayload wraps an error. Non-application errors become TRANSPORT.
func ErrorPayload(err error) Payload {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Transport(err)
	}
	body := appErr.ToBody()
	return Payload{Type: PayloadError, Error: &body}
}

// AbortPayload is the error payload sent when the watched table goes away.
func AbortPayload(reason string) Payload {
	return ErrorPayload(apperrors.FeedAborted(reason))
}

// IsChange reports whether p carries a change body.
func (p Payload) IsChange() bool { return p.Type == PayloadChange }

// Record decodes the change body.
func (p Payload) Record() (*ChangeRecord, error) {
	if p.Type != PayloadChange {
		return nil, apperrors.MalformedPayload(fmt.Errorf("payload type %q is not a change", p.Type))
	}
	var rec ChangeRecord
	if err := json.Unmarshal(p.Data, &rec); err != nil {
		return nil, apperrors.MalformedPayload(err)
	}
	if rec.OldVal == nil && rec.NewVal == nil {
		return nil, apperrors.MalformedPayload(fmt.Errorf("change has neither old_val nor new_val"))
	}
	return &rec, nil
}

// Err returns the error carried by an error payload.
func (p Payload) Err() *apperrors.AppError {
	if p.Type != PayloadError || p.Error == nil {
		return apperrors.MalformedPayload(fmt.Errorf("payload type %q carries no error", p.Type))
	}
	return apperrors.FromBody(*p.Error)
}

// EncodePayload serializes p into its wire envelope.
func EncodePayload(p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, apperrors.MalformedPayload(err)
	}
	return b, nil
}

// DecodePayload parses a wire envelope and checks it is well formed.
func DecodePayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, apperrors.MalformedPayload(err)
	}
	switch p.Type {
	case PayloadChange:
		if len(p.Data) == 0 {
			return Payload{}, apperrors.MalformedPayload(fmt.Errorf("change payload without data"))
		}
	case PayloadError:
		if p.Error == nil || p.Error.Code == "" {
			return Payload{}, apperrors.MalformedPayload(fmt.Errorf("error payload without code"))
		}
	default:
		return Payload{}, apperrors.MalformedPayload(fmt.Errorf("unknown payload type %q", p.Type))
	}
	return p, nil
}
