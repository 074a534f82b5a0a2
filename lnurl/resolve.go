package lnurl

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/cockroachdb/errors"
)

const wellKnownPath = "https://%s/.well-known/lnurlp/%s"

// Resolve turns a lightning address (`name@domain`) or a bech32 encoded LNURL
// into the URL that serves the LNURL-pay parameters.
func Resolve(address string) (string, error) {
	address = strings.TrimSpace(address)

	if localPart, domain, ok := strings.Cut(address, "@"); ok {
		if localPart == "" || domain == "" {
			return "", errors.Mark(errors.Newf("lightning address %q has an empty name or domain", address), ErrDecode)
		}
		if strings.Contains(domain, "@") {
			return "", errors.Mark(errors.Newf("lightning address %q has more than one @", address), ErrDecode)
		}
		return fmt.Sprintf(wellKnownPath, domain, localPart), nil
	}

	// LNURLs routinely exceed the 90 character limit of BIP-173.
	_, data, err := bech32.DecodeNoLimit(strings.ToUpper(address))
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "decode lnurl %q", address), ErrDecode)
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "regroup lnurl %q", address), ErrDecode)
	}

	if !utf8.Valid(raw) {
		return "", errors.Mark(errors.Newf("lnurl %q does not carry a utf-8 url", address), ErrDecode)
	}
	return string(raw), nil
}
