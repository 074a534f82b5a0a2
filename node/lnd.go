package node

import (
	"context"
	"encoding/hex"
	"net/url"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// lnd replies (payment streams with htlc details) can exceed the grpc default.
const maxRecvMsgSize = 50 * 1024 * 1024

// DialLND is the Dialer for an LND node. It reads the TLS certificate and the
// macaroon from disk and sends the macaroon with every call.
func DialLND(_ context.Context, cfg ConnectionConfig) (Client, error) {
	tlsCreds, err := credentials.NewClientTLSFromFile(cfg.CertPath, "")
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "load tls certificate %s", cfg.CertPath), ErrConnection)
	}

	mac, err := loadMacaroon(cfg.MacaroonPath)
	if err != nil {
		return nil, errors.Mark(err, ErrConnection)
	}

	conn, err := grpc.NewClient(
		target(cfg.ServerURL),
		grpc.WithTransportCredentials(tlsCreds),
		grpc.WithPerRPCCredentials(mac),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
	)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "dial %s", cfg.ServerURL), ErrConnection)
	}

	return &lndClient{
		conn:      conn,
		lightning: lnrpc.NewLightningClient(conn),
		router:    routerrpc.NewRouterClient(conn),
	}, nil
}

// target strips the scheme of an https://host:port style address.
func target(serverURL string) string {
	if !strings.Contains(serverURL, "://") {
		return serverURL
	}
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return serverURL
	}
	return u.Host
}

type macaroonCredential string

func loadMacaroon(path string) (macaroonCredential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read macaroon %s", path)
	}
	return macaroonCredential(hex.EncodeToString(raw)), nil
}

func (m macaroonCredential) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"macaroon": string(m)}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool { return true }

type lndClient struct {
	conn      *grpc.ClientConn
	lightning lnrpc.LightningClient
	router    routerrpc.RouterClient
}

func (c *lndClient) GetInfo(ctx context.Context) (Info, error) {
	resp, err := c.lightning.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return Info{}, errors.Mark(errors.Wrap(err, "GetInfo"), ErrConnection)
	}
	return Info{Alias: resp.Alias, PubKey: resp.IdentityPubkey}, nil
}

func (c *lndClient) SendPayment(ctx context.Context, in Instruction) (Stream, error) {
	stream, err := c.router.SendPaymentV2(ctx, &routerrpc.SendPaymentRequest{
		PaymentRequest: in.PaymentRequest,
		TimeoutSeconds: int32(in.Timeout.Seconds()),
		FeeLimitSat:    in.FeeLimitSats,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "SendPaymentV2"), ErrConnection)
	}
	return &lndStream{stream: stream}, nil
}

func (c *lndClient) Close() error {
	return c.conn.Close()
}

type lndStream struct {
	stream routerrpc.Router_SendPaymentV2Client
}

// Recv passes io.EOF through untouched so callers can detect the end of the stream.
func (s *lndStream) Recv() (Update, error) {
	payment, err := s.stream.Recv()
	if err != nil {
		return Update{}, err
	}
	return updateFromPayment(payment), nil
}

func updateFromPayment(p *lnrpc.Payment) Update {
	return Update{
		Status:        classify(p.Status),
		FailureReason: failureReason(p.FailureReason),
		PaymentHash:   p.PaymentHash,
		FeeSats:       p.FeeSat,
	}
}

// classify maps lnd's payment states onto the three outcomes the payer knows.
// INITIATED precedes the first htlc attempt and is reported as in flight.
func classify(status lnrpc.Payment_PaymentStatus) Status {
	switch status {
	case lnrpc.Payment_SUCCEEDED:
		return StatusSucceeded
	case lnrpc.Payment_IN_FLIGHT, lnrpc.Payment_INITIATED:
		return StatusInFlight
	default:
		return StatusFailed
	}
}

func failureReason(reason lnrpc.PaymentFailureReason) string {
	if reason == lnrpc.PaymentFailureReason_FAILURE_REASON_NONE {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(reason.String(), "FAILURE_REASON_"))
}
