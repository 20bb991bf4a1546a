package app

import (
	"github.com/probuildhq/probuild/internal/auth"
	"github.com/probuildhq/probuild/internal/database"
	"github.com/probuildhq/probuild/pkg/mail"
)

// JWTServiceConfig converts the auth section into the config expected by auth.NewJWTService.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	cfg := auth.JWTConfig{
		Secret: c.JWT.Secret,
		Issuer: c.JWT.Issuer,
	}
	if c.JWT.TTL > 0 {
		cfg.AccessTokenTTL = c.JWT.TTL
	}
	return cfg
}

// SessionServiceConfig converts the auth section into the config expected by auth.NewSessionService.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	cfg := auth.SessionConfig{}
	if c.Session.RefreshTTL > 0 {
		cfg.RefreshTokenTTL = c.Session.RefreshTTL
	}
	if c.Session.RefreshLength > 0 {
		cfg.RefreshLength = c.Session.RefreshLength
	}
	return cfg
}

// SMTPSettings converts the email section into the mailer's runtime settings.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// DatabaseSettings converts the database section into the connection config.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		Name:     c.Name,
		User:     c.User,
		Password: c.Password,
		Options:  c.Options,
	}
}
