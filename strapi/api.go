package strapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// NewAPI returns a client for the Strapi instance at apiURL, e.g. https://cms.example.  The token
// is optional; public instances answer without one.
func NewAPI(apiURL string, token string) (*API, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("strapi: configure your Strapi URL with --api-url")
	}

	u, err := url.ParseRequestURI(strings.TrimRight(apiURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't parse REST API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("strapi: API URL must be http(s), got %q", apiURL)
	}

	a := &API{
		BaseURI: u,
		token:   token,
	}
	a.Client = &http.Client{}

	return a, nil
}

type API struct {
	// Where Strapi lives, without a trailing slash.  Media URLs in entities are relative to this.
	BaseURI *url.URL

	// An HTTP client - you can substitute VCR or whatnot.
	Client *http.Client

	// API token, sent as a bearer token when set.
	token string
}

// URL returns the base URI as a string, which is also the prefix of every site-relative media URL.
func (api *API) URL() string {
	return api.BaseURI.String()
}
