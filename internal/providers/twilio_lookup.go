package providers

import (
	"context"
	"fmt"

	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	lookupsv2 "github.com/twilio/twilio-go/rest/lookups/v2"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
)

// phoneLookupAPI is the one Lookups v2 call we use.
type phoneLookupAPI interface {
	FetchPhoneNumber(phoneNumber string, params *lookupsv2.FetchPhoneNumberParams) (*lookupsv2.LookupsV2PhoneNumber, error)
}

// TwilioLookup validates numbers with Twilio Lookups v2 (free basic tier).
type TwilioLookup struct {
	api phoneLookupAPI
}

func NewTwilioLookup(accountSID, authToken string) *TwilioLookup {
	tw := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioLookup{api: tw.LookupsV2}
}

func (t *TwilioLookup) Name() string { return constants.ProviderTwilio }

func (t *TwilioLookup) Validate(ctx context.Context, number string) (bool, error) {
	type result struct {
		pn  *lookupsv2.LookupsV2PhoneNumber
		err error
	}
	// The SDK call takes no context; bound it ourselves.
	done := make(chan result, 1)
	go func() {
		pn, err := t.api.FetchPhoneNumber(number, &lookupsv2.FetchPhoneNumberParams{})
		done <- result{pn, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		if restErr, ok := res.err.(*twilioclient.TwilioRestError); ok {
			if restErr.Status == 404 {
				return false, nil
			}
			return false, fmt.Errorf("twilio lookup failed: %d %s", restErr.Status, restErr.Error())
		}
		return false, res.err
	}
	if res.pn == nil || res.pn.Valid == nil {
		return false, fmt.Errorf("%w: missing 'valid' field", ErrUnexpectedResponse)
	}
	return *res.pn.Valid, nil
}
