package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds PostgreSQL connection settings, decoded from
// core.AdapterConfig.Options. A dsn option wins over the discrete fields.
type Params struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	// ConnectTimeout is in seconds; 0 leaves the driver default.
	ConnectTimeout int `mapstructure:"connect_timeout"`
}

// ParseParams decodes the adapter options into Params.
func ParseParams(options map[string]string) (*Params, error) {
	p := &Params{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(options); err != nil {
		return nil, fmt.Errorf("invalid postgres options: %w", err)
	}
	if p.DSN == "" && p.Database == "" {
		return nil, errors.New("invalid postgres options: dsn or database is required")
	}
	if p.Port < 0 || p.ConnectTimeout < 0 {
		return nil, errors.New("invalid postgres options: port and connect_timeout must not be negative")
	}
	return p, nil
}

// ConnString returns the keyword/value connection string.
func (p *Params) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}

	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		"host=" + host,
		fmt.Sprintf("port=%d", port),
		"dbname=" + p.Database,
		"sslmode=" + sslmode,
	}
	if p.User != "" {
		parts = append(parts, "user="+p.User)
	}
	if p.Password != "" {
		parts = append(parts, "password="+p.Password)
	}
	if p.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", p.ConnectTimeout))
	}
	return strings.Join(parts, " ")
}
