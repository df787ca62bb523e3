package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/models"
)

// BuildRedirectURL appends a tracking parameter carrying referralID to the
// offer link. The name is {prefix}{n} with the smallest unused n, where the
// prefix is the advertiser's query_param_prefix or "aff_sub". Existing
// parameters keep their order and encoding.
func BuildRedirectURL(offer *models.Offer, referralID int64) (string, error) {
	if offer == nil {
		return "", fmt.Errorf("nil offer")
	}
	u, err := url.Parse(strings.TrimSpace(offer.Link))
	if err != nil {
		return "", fmt.Errorf("parse offer link %q: %w", offer.Link, err)
	}

	prefix := constants.DefaultQueryParamBase
	if offer.Advertiser != nil && offer.Advertiser.QueryParamPrefix != "" {
		prefix = offer.Advertiser.QueryParamPrefix
	}

	// ParseQuery keeps whatever pairs it could decode even on error.
	existing, _ := url.ParseQuery(u.RawQuery)
	name := nextFreeParam(existing, prefix)

	pair := url.QueryEscape(name) + "=" + strconv.FormatInt(referralID, 10)
	raw := strings.TrimRight(u.RawQuery, "&")
	if raw == "" {
		u.RawQuery = pair
	} else {
		u.RawQuery = raw + "&" + pair
	}
	return u.String(), nil
}

// nextFreeParam returns prefix+n for the smallest n absent from the query.
func nextFreeParam(existing url.Values, prefix string) string {
	for n := 1; ; n++ {
		name := prefix + strconv.Itoa(n)
		if _, taken := existing[name]; !taken {
			return name
		}
	}
}

// ReferralShareURL is the public link a promoter hands out.
func ReferralShareURL(appURL string, referralID int64) string {
	return strings.TrimRight(appURL, "/") + constants.ReferralPathPrefix + strconv.FormatInt(referralID, 10)
}
