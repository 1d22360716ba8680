package asgardeo

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

type Client struct {
	BaseURL     string
	OAuthConfig *clientcredentials.Config
	// Client carries the service's client-credentials token for SCIM calls
	Client *http.Client
	// UserClient is used for calls made with the end user's own token
	UserClient *http.Client
}

func NewClient(baseUrl string, clientId string, clientSecret string, scopes []string) *Client {

	oauthConfig := &clientcredentials.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		TokenURL:     baseUrl + "/oauth2/token",
		Scopes:       scopes,
	}

	return &Client{
		BaseURL:     baseUrl,
		OAuthConfig: oauthConfig,
		Client:      oauthConfig.Client(context.Background()),
		UserClient:  &http.Client{Timeout: 10 * time.Second},
	}
}
