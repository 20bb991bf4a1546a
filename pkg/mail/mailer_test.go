package mail

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSMTPClient struct {
	from       string
	recipients []string
	data       strings.Builder
	quitCalled bool
}

func (f *fakeSMTPClient) Mail(from string) error { f.from = from; return nil }
func (f *fakeSMTPClient) Rcpt(to string) error   { f.recipients = append(f.recipients, to); return nil }
func (f *fakeSMTPClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&f.data}, nil
}
func (f *fakeSMTPClient) Quit() error                     { f.quitCalled = true; return nil }
func (f *fakeSMTPClient) Close() error                    { return nil }
func (f *fakeSMTPClient) StartTLS(*tls.Config) error      { return nil }
func (f *fakeSMTPClient) Auth(smtp.Auth) error            { return nil }
func (f *fakeSMTPClient) Extension(string) (bool, string) { return false, "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newTestMailer(t *testing.T, client *fakeSMTPClient) *smtpMailer {
	t.Helper()
	server, local := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = local.Close()
	})

	return &smtpMailer{
		cfg: SMTPSettings{
			Enabled: true,
			Host:    "smtp.example.com",
			Port:    587,
			From:    "noreply@probuild.example",
			Timeout: time.Second,
		},
		dialFn: func(context.Context, SMTPSettings) (net.Conn, smtpClient, error) {
			return local, client, nil
		},
		authFn: func(smtpClient, SMTPSettings) error { return nil },
	}
}

func TestSMTPMailerSend(t *testing.T) {
	client := &fakeSMTPClient{}
	mailer := newTestMailer(t, client)

	err := mailer.Send(context.Background(), Message{
		To:      []string{"pm@example.com", "pm@example.com", " "},
		Subject: "You have been invited",
		Body:    "Join the Riverside Tower project.",
	})
	require.NoError(t, err)

	require.Equal(t, "noreply@probuild.example", client.from)
	require.Equal(t, []string{"pm@example.com"}, client.recipients)
	require.True(t, client.quitCalled)
	require.Contains(t, client.data.String(), "Subject: You have been invited")
	require.Contains(t, client.data.String(), "Join the Riverside Tower project.")
}

func TestSMTPMailerRejectsEmptyRecipients(t *testing.T) {
	mailer := newTestMailer(t, &fakeSMTPClient{})

	err := mailer.Send(context.Background(), Message{Subject: "empty"})
	require.Error(t, err)
}

func TestSMTPMailerRejectsBadAddress(t *testing.T) {
	mailer := newTestMailer(t, &fakeSMTPClient{})

	err := mailer.Send(context.Background(), Message{
		To:   []string{"not-an-address"},
		Body: "x",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid recipient")
}

func TestNewFallsBackToLogMailer(t *testing.T) {
	mailer := New(SMTPSettings{Enabled: false}, zap.NewNop())

	_, ok := mailer.(*LogMailer)
	require.True(t, ok)

	// The fallback must always succeed so callers keep creating records.
	err := mailer.Send(context.Background(), Message{
		To:      []string{"invitee@example.com"},
		Subject: "Project invitation",
	})
	require.NoError(t, err)
}

func TestNewFallsBackWhenHostMissing(t *testing.T) {
	mailer := New(SMTPSettings{Enabled: true}, zap.NewNop())

	_, ok := mailer.(*LogMailer)
	require.True(t, ok)
}

func TestEscapeHeaderStripsNewlines(t *testing.T) {
	require.Equal(t, "a b c", escapeHeader("a\rb\nc"))
}
