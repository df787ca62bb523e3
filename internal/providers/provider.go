// Package providers holds the external phone-number validation clients used by
// the verification fallback chain.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/constants"
)

// ErrUnexpectedResponse covers non-success payloads and missing validity fields.
var ErrUnexpectedResponse = errors.New("unexpected provider response")

// PhoneValidator answers whether a number is a real, reachable line.
// An error means the provider could not answer, not that the number is bad.
type PhoneValidator interface {
	Name() string
	Validate(ctx context.Context, number string) (bool, error)
}

// NewHTTPClient returns the client shared by the REST providers.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: constants.ProviderTimeout}
}

// Build constructs validators in chain order.
func Build(cfg *config.Config, client *http.Client) ([]PhoneValidator, error) {
	var out []PhoneValidator
	for _, p := range cfg.Providers() {
		switch p.Name {
		case constants.ProviderNumVerify:
			out = append(out, NewNumVerify(p, client))
		case constants.ProviderAbstract:
			out = append(out, NewAbstract(p, client))
		case constants.ProviderTwilio:
			out = append(out, NewTwilioLookup(p.APIKey, cfg.TwilioAuthToken))
		default:
			return nil, fmt.Errorf("unknown phone provider %q", p.Name)
		}
	}
	return out, nil
}
