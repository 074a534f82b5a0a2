package lnurl

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-cleanhttp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout bounds each HTTP round trip of the exchange.
const DefaultTimeout = 30 * time.Second

// replies larger than this are not LNURL documents.
const maxReplyBytes = 1 << 20

// Negotiator performs the LNURL-pay exchange: fetch pay parameters, validate
// them, then request an invoice from the callback. It keeps no state between
// calls and may be shared by concurrent firings.
type Negotiator struct {
	client   *http.Client
	validate Validator
	logger   *zap.Logger
}

type FuncOption func(n *Negotiator)

// WithHTTPClient replaces the pooled client built by NewNegotiator.
func WithHTTPClient(client *http.Client) FuncOption {
	return func(n *Negotiator) {
		n.client = client
	}
}

// WithTimeout sets the timeout of the default client.
func WithTimeout(timeout time.Duration) FuncOption {
	return func(n *Negotiator) {
		if timeout > 0 {
			n.client.Timeout = timeout
		}
	}
}

// WithValidator installs the check run between the two fetches.
func WithValidator(v Validator) FuncOption {
	return func(n *Negotiator) {
		if v != nil {
			n.validate = v
		}
	}
}

// NewNegotiator creates a Negotiator backed by a pooled cleanhttp client.
func NewNegotiator(logger *zap.Logger, options ...FuncOption) *Negotiator {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = DefaultTimeout

	n := &Negotiator{
		client:   client,
		validate: AcceptAll,
		logger:   logger,
	}
	for _, option := range options {
		option(n)
	}
	return n
}

// Invoice runs the exchange against endpoint for amountSats and returns the
// payable invoice. memo is sent as the payment comment and may be empty.
func (n *Negotiator) Invoice(ctx context.Context, endpoint string, amountSats int64, memo string) (Invoice, error) {
	var info PayInfo
	if err := n.getJSON(ctx, endpoint, &info); err != nil {
		return Invoice{}, errors.Wrap(err, "fetch pay parameters")
	}
	if strings.EqualFold(info.Status, "ERROR") {
		return Invoice{}, errors.Mark(errors.Newf("payee refused pay parameters: %s", info.Reason), ErrMalformedResponse)
	}
	if info.Callback == "" {
		return Invoice{}, errors.Mark(errors.Newf("pay parameters from %s have no callback", endpoint), ErrMalformedResponse)
	}

	amountMsat := amountSats * 1000
	if err := n.validate(info, amountMsat); err != nil {
		return Invoice{}, errors.Mark(errors.Wrap(err, "validate pay parameters"), ErrValidation)
	}

	requestURL, err := RequestURL(info.Callback, amountMsat, memo)
	if err != nil {
		return Invoice{}, err
	}
	n.logger.Debug("[Negotiator] requesting invoice", zap.String("url", requestURL))

	var reply payRequest
	if err := n.getJSON(ctx, requestURL, &reply); err != nil {
		return Invoice{}, errors.Wrap(err, "fetch invoice")
	}
	if strings.EqualFold(reply.Status, "ERROR") {
		return Invoice{}, errors.Mark(errors.Newf("payee refused invoice request: %s", reply.Reason), ErrMalformedResponse)
	}
	if reply.PR == "" {
		return Invoice{}, errors.Mark(errors.New("invoice reply has no payment request"), ErrMalformedResponse)
	}

	invoice := Invoice{PaymentRequest: reply.PR}
	if reply.SuccessAction != nil {
		invoice.SuccessMessage = reply.SuccessAction.Message
	}
	return invoice, nil
}

// RequestURL appends the amount (millisatoshi) and comment parameters to a
// callback URL, keeping any query the callback already carries.
func RequestURL(callback string, amountMsat int64, comment string) (string, error) {
	u, err := url.Parse(callback)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "parse callback %q", callback), ErrMalformedResponse)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Mark(errors.Newf("callback %q is not an absolute url", callback), ErrMalformedResponse)
	}

	query := u.Query()
	query.Set("amount", strconv.FormatInt(amountMsat, 10))
	query.Set("comment", comment)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (n *Negotiator) getJSON(ctx context.Context, target string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "build request for %q", target), ErrNetwork)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "GET %s", target), ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Mark(errors.Newf("GET %s: unexpected status %s", target, resp.Status), ErrNetwork)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "read reply of %s", target), ErrNetwork)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode reply of %s", target), ErrMalformedResponse)
	}
	return nil
}
