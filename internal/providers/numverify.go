package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/constants"
)

// NumVerify talks to the apilayer NumVerify "validate" endpoint.
type NumVerify struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNumVerify(cfg config.ProviderConfig, client *http.Client) *NumVerify {
	return &NumVerify{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, client: client}
}

func (n *NumVerify) Name() string { return constants.ProviderNumVerify }

type numVerifyResponse struct {
	Valid   *bool `json:"valid"`
	Success *bool `json:"success"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
}

func (n *NumVerify) Validate(ctx context.Context, number string) (bool, error) {
	q := url.Values{}
	q.Set("access_key", n.apiKey)
	q.Set("number", number)
	q.Set("country_code", "")
	q.Set("format", "1")

	var body numVerifyResponse
	if err := getJSON(ctx, n.client, n.baseURL+"?"+q.Encode(), &body); err != nil {
		return false, err
	}

	// NumVerify answers HTTP 200 even for quota and key errors.
	if body.Success != nil && !*body.Success {
		info := "unknown error"
		if body.Error != nil && body.Error.Info != "" {
			info = body.Error.Info
		}
		return false, fmt.Errorf("%w: %s", ErrUnexpectedResponse, info)
	}
	if body.Valid == nil {
		return false, fmt.Errorf("%w: missing 'valid' field", ErrUnexpectedResponse)
	}
	return *body.Valid, nil
}
