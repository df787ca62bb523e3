package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/constants"
)

// Abstract talks to the Abstract API phone validation endpoint.
type Abstract struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAbstract(cfg config.ProviderConfig, client *http.Client) *Abstract {
	return &Abstract{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, client: client}
}

func (a *Abstract) Name() string { return constants.ProviderAbstract }

func (a *Abstract) Validate(ctx context.Context, number string) (bool, error) {
	q := url.Values{}
	q.Set("api_key", a.apiKey)
	q.Set("phone", number)

	var body struct {
		Valid *bool `json:"valid"`
	}
	if err := getJSON(ctx, a.client, a.baseURL+"?"+q.Encode(), &body); err != nil {
		return false, err
	}
	if body.Valid == nil {
		return false, fmt.Errorf("%w: missing 'valid' field", ErrUnexpectedResponse)
	}
	return *body.Valid, nil
}
