package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Flow modes selectable via AUTH_FLOW_MODE
const (
	FlowModePopup  = "popup"
	FlowModeCookie = "cookie"
)

// EnvVars holds every environment variable the relay reads. Parsed once at
// startup; the Get* methods expose it behind the Config interfaces.
type EnvVars struct {
	Port    string `env:"PORT" envDefault:"8080"`
	AppName string `env:"APP_NAME" envDefault:"Outlook Auth Relay"`
	Env     string `env:"ENV" envDefault:"DEV"`

	TenantID     string `env:"TENANT_ID,required"`
	ClientID     string `env:"CLIENT_ID,required"`
	ClientSecret string `env:"CLIENT_SECRET,required"`
	RedirectURI  string `env:"REDIRECT_URI,required"`
	LoginScopes  string `env:"LOGIN_SCOPES" envDefault:"openid profile email User.Read"`

	FlowMode           string `env:"AUTH_FLOW_MODE" envDefault:"popup"`
	SessionTokenSecret string `env:"APP_JWT_SECRET,required"`

	TimesheetAPIURL string `env:"TIMESHEET_API_URL"`
	TimesheetScope  string `env:"TIMESHEET_API_SCOPE"`

	Origins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

var _ EnvConfig = EnvVars{}
var _ AuthorityConfig = EnvVars{}
var _ RelayConfig = EnvVars{}

func (e *EnvVars) parse() error {
	if err := env.Parse(e); err != nil {
		return fmt.Errorf("env.Parse: %w", err)
	}
	if e.FlowMode != FlowModePopup && e.FlowMode != FlowModeCookie {
		return fmt.Errorf("AUTH_FLOW_MODE must be %q or %q, got %q", FlowModePopup, FlowModeCookie, e.FlowMode)
	}
	return nil
}

func (e EnvVars) GetPort() string {
	port := e.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetTenantID() string {
	return e.TenantID
}

func (e EnvVars) GetClientID() string {
	return e.ClientID
}

func (e EnvVars) GetClientSecret() string {
	return e.ClientSecret
}

func (e EnvVars) GetRedirectURI() string {
	return e.RedirectURI
}

func (e EnvVars) GetLoginScopes() []string {
	return strings.Fields(e.LoginScopes)
}

func (e EnvVars) GetFlowMode() string {
	return e.FlowMode
}

func (e EnvVars) GetSessionTokenSecret() string {
	return e.SessionTokenSecret
}

func (e EnvVars) GetTimesheetAPIURL() string {
	return e.TimesheetAPIURL
}

func (e EnvVars) GetTimesheetScope() string {
	return e.TimesheetScope
}
