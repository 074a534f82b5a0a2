package node

import (
	"context"
	"time"
)

// Error marks the class of a failure so callers can test it with errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

// ErrConnection is returned when the payment node cannot be reached or a
// payment stream breaks at the transport level.
const ErrConnection = Error("payment node connection failed")

// Status is the classification of one payment update.
type Status int

const (
	// StatusFailed covers every update that is neither succeeded nor in flight.
	StatusFailed Status = iota
	StatusInFlight
	StatusSucceeded
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusInFlight:
		return "in_flight"
	default:
		return "failed"
	}
}

// ConnectionConfig locates the payment node and the credentials to talk to it.
type ConnectionConfig struct {
	// ServerURL is the node's RPC address, with or without an https:// scheme.
	ServerURL string
	// CertPath is the node's TLS certificate.
	CertPath string
	// MacaroonPath is the access credential.
	MacaroonPath string
}

// Instruction is what gets submitted to the node for one payment.
type Instruction struct {
	PaymentRequest string
	Timeout        time.Duration
	FeeLimitSats   int64
}

// Update is one entry of a payment status stream.
type Update struct {
	Status        Status
	FailureReason string
	PaymentHash   string
	FeeSats       int64
}

// Stream yields payment updates until it returns io.EOF.
type Stream interface {
	Recv() (Update, error)
}

// Info identifies the node answering on a connection.
type Info struct {
	Alias  string
	PubKey string
}

// Client is an open connection to a payment node.
type Client interface {
	// GetInfo asks the node who it is, used to verify connectivity.
	GetInfo(ctx context.Context) (Info, error)
	// SendPayment submits an instruction and returns its status stream.
	SendPayment(ctx context.Context, in Instruction) (Stream, error)
	// Close releases the connection.
	Close() error
}

// Dialer opens a Client for a connection config.
type Dialer func(ctx context.Context, cfg ConnectionConfig) (Client, error)
