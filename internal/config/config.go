package config

import "fmt"

type Config interface {
	EnvConfig
	CorsConfig
	AuthorityConfig
	RelayConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// AuthorityConfig describes this relay's registration with the identity
// provider.
type AuthorityConfig interface {
	GetTenantID() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetLoginScopes() []string
}

// RelayConfig describes the relay's own behaviour: which flow variant is
// active, how first-party session tokens are minted, and where the
// downstream timesheet API lives.
type RelayConfig interface {
	GetFlowMode() string
	GetSessionTokenSecret() string
	GetTimesheetAPIURL() string
	GetTimesheetScope() string
}

type mainConfig struct {
	EnvVars
	Cors
}

func New() (Config, error) {
	c := mainConfig{}
	if err := c.EnvVars.parse(); err != nil {
		return nil, fmt.Errorf("[config New] failed to parse environment: %w", err)
	}
	c.Cors = newCors(c.EnvVars.Origins)
	return c, nil
}

// NewFromEnvVars builds a Config from an already-populated EnvVars, skipping
// environment parsing. Intended for tests.
func NewFromEnvVars(e EnvVars) Config {
	return mainConfig{
		EnvVars: e,
		Cors:    newCors(e.Origins),
	}
}
