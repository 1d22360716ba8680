package idpfactory

import (
	"errors"

	"github.com/turuturustars/turuturustars-sub001/idp"
	"github.com/turuturustars/turuturustars-sub001/idp/asgardeo"
	"github.com/turuturustars/turuturustars-sub001/idp/gotrue"
)

type FactoryConfig struct {
	ProviderType idp.ProviderType
	BaseURL      string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// ServiceKey authenticates admin calls for providers without client credentials
	ServiceKey string
}

func NewIdpAPIProvider(cfg FactoryConfig) (idp.IdentityProviderAPI, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("identity provider base URL is required")
	}
	switch cfg.ProviderType {
	case idp.ProviderAsgardeo:
		return asgardeo.NewClient(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes), nil
	case idp.ProviderGoTrue:
		if cfg.ServiceKey == "" {
			return nil, errors.New("gotrue provider requires a service key")
		}
		return gotrue.NewClient(cfg.BaseURL, cfg.ServiceKey), nil
	default:
		return nil, errors.New("unsupported provider type")
	}
}
