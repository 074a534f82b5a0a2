package lnurl

import (
	"github.com/cockroachdb/errors"
)

// Error marks the class of a failure so callers can test it with errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrDecode is returned when a destination is neither a lightning address nor a valid LNURL.
	ErrDecode = Error("invalid lightning address or lnurl")
	// ErrNetwork is returned when a payee endpoint cannot be reached or answers with a non 2xx status.
	ErrNetwork = Error("lnurl endpoint unreachable")
	// ErrMalformedResponse is returned when a payee reply cannot be decoded or lacks a required field.
	ErrMalformedResponse = Error("malformed lnurl response")
	// ErrValidation is returned when the Validator rejects the pay parameters.
	ErrValidation = Error("lnurl pay parameters rejected")
)

// PayInfo is the first reply of the LNURL-pay exchange.
type PayInfo struct {
	Tag            string `json:"tag"`
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	CommentAllowed int    `json:"commentAllowed"`
	Metadata       string `json:"metadata"`

	Status string `json:"status"`
	Reason string `json:"reason"`
}

type successAction struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type payRequest struct {
	PR            string         `json:"pr"`
	SuccessAction *successAction `json:"successAction"`

	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Invoice is the payable instruction returned by a payee for one firing.
type Invoice struct {
	// PaymentRequest is the bolt11 encoded invoice.
	PaymentRequest string
	// SuccessMessage is shown to the operator once the payment succeeds, may be empty.
	SuccessMessage string
}

// Validator checks the pay parameters before an invoice is requested.
type Validator func(info PayInfo, amountMsat int64) error

// AcceptAll is the default Validator, it enforces nothing.
func AcceptAll(PayInfo, int64) error { return nil }

// WithinSendableBounds rejects amounts outside the payee's advertised
// [minSendable, maxSendable] range. A zero bound is treated as unset.
func WithinSendableBounds(info PayInfo, amountMsat int64) error {
	if info.MinSendable > 0 && amountMsat < info.MinSendable {
		return errors.Newf("amount %d msat below minSendable %d", amountMsat, info.MinSendable)
	}
	if info.MaxSendable > 0 && amountMsat > info.MaxSendable {
		return errors.Newf("amount %d msat above maxSendable %d", amountMsat, info.MaxSendable)
	}
	return nil
}
