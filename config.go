package listwarden

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"golang.org/x/sys/unix"
)

// SecurityMode is the SMTP transport's TLS posture.
type SecurityMode int

const (
	SecurityNone SecurityMode = iota
	SecurityStartTLS
	SecurityTLS
)

// SMTPAuth configures SASL authentication for outbound SMTP submission.
type SMTPAuth struct {
	Username       string
	Password       string
	AuthType       string // e.g. "plain", "login"
	RequireAuth    bool
	authConfigured bool
}

// SMTPConfig is the {Smtp = {...}} variant of send_mail (spec.md §6).
type SMTPConfig struct {
	Hostname                string
	Port                    int
	EnvelopeFrom             string
	Auth                    *SMTPAuth
	Security                SecurityMode
	DangerAcceptInvalidCerts bool
	Extensions              []string
}

// TransportConfig is the tagged send_mail union: exactly one of
// ShellCommand or SMTP is set.
type TransportConfig struct {
	ShellCommand string
	SMTP         *SMTPConfig
}

func (t TransportConfig) Validate() error {
	if (t.ShellCommand == "") == (t.SMTP == nil) {
		return Configurationf("send_mail must set exactly one of ShellCommand or Smtp")
	}
	return nil
}

// Config is the TOML configuration file of spec.md §6.
type Config struct {
	DBPath         string   `toml:"db_path"`
	DataPath       string   `toml:"data_path"`
	Administrators []string `toml:"administrators"`
	SendMail       rawSendMail `toml:"send_mail"`
}

// rawSendMail mirrors the tagged-union TOML shape:
//
//	[send_mail]
//	ShellCommand = "/usr/sbin/sendmail -t"
//
// or
//
//	[send_mail.Smtp]
//	hostname = "smtp.example.com"
//	port = 587
//	...
type rawSendMail struct {
	ShellCommand string          `toml:"ShellCommand"`
	Smtp         *rawSendMailSMTP `toml:"Smtp"`
}

type rawSendMailSMTP struct {
	Hostname     string         `toml:"hostname"`
	Port         int            `toml:"port"`
	EnvelopeFrom string         `toml:"envelope_from"`
	Auth         rawSMTPAuth    `toml:"auth"`
	Security     rawSecurity    `toml:"security"`
	Extensions   []string       `toml:"extensions"`
}

type rawSMTPAuth struct {
	Tag         string `toml:"tag"` // "None" or "Auto"
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	AuthType    string `toml:"auth_type"`
	RequireAuth bool   `toml:"require_auth"`
}

type rawSecurity struct {
	Tag                      string `toml:"tag"` // "None", "StartTLS" or "Tls"
	DangerAcceptInvalidCerts bool   `toml:"danger_accept_invalid_certs"`
}

// Transport converts the raw TOML shape into a validated TransportConfig.
func (c Config) Transport() (TransportConfig, error) {
	var t TransportConfig
	switch {
	case c.SendMail.ShellCommand != "":
		t.ShellCommand = c.SendMail.ShellCommand
	case c.SendMail.Smtp != nil:
		s := c.SendMail.Smtp
		smtp := &SMTPConfig{
			Hostname:     s.Hostname,
			Port:         s.Port,
			EnvelopeFrom: s.EnvelopeFrom,
			Extensions:   s.Extensions,
		}
		if s.Auth.Tag == "Auto" {
			smtp.Auth = &SMTPAuth{
				Username:    s.Auth.Username,
				Password:    s.Auth.Password,
				AuthType:    s.Auth.AuthType,
				RequireAuth: s.Auth.RequireAuth,
			}
		}
		switch s.Security.Tag {
		case "StartTLS":
			smtp.Security = SecurityStartTLS
			smtp.DangerAcceptInvalidCerts = s.Security.DangerAcceptInvalidCerts
		case "Tls":
			smtp.Security = SecurityTLS
			smtp.DangerAcceptInvalidCerts = s.Security.DangerAcceptInvalidCerts
		default:
			smtp.Security = SecurityNone
		}
		t.SMTP = smtp
	default:
		return t, Configurationf("send_mail is missing")
	}
	return t, t.Validate()
}

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, WrapConfiguration(err, fmt.Sprintf("reading config %s", path))
	}
	if c.DBPath == "" {
		return nil, Configurationf("db_path is required")
	}
	if c.DataPath == "" {
		return nil, Configurationf("data_path is required")
	}
	if unix.Access(c.DataPath, unix.W_OK) != nil {
		return nil, Configurationf(fmt.Sprintf("data_path %s is not writeable", c.DataPath))
	}
	if _, err := c.Transport(); err != nil {
		return nil, err
	}
	for _, a := range c.Administrators {
		if a == "" {
			return nil, Configurationf("administrators contains an empty address")
		}
	}
	return &c, nil
}

// IsAdministrator reports whether address is configured as an
// administrator.
func (c *Config) IsAdministrator(address string) bool {
	for _, a := range c.Administrators {
		if a == address {
			return true
		}
	}
	return false
}
