// Package mailer es el transporte de salida de mail: un colaborador
// opaco send(to, subject, html, text). El renderer nunca lo toca; lo
// consumen delivery y el test-send.
package mailer

import (
	"crypto/tls"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/mailplane/internal/observability/logger"
)

// Sender es la interfaz mínima de envío.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPConfig configura la conexión al servidor SMTP.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	TLSMode   string // "auto" | "starttls" | "ssl" | "none"
	// InsecureSkipVerify solo para dev.
	InsecureSkipVerify bool
}

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender crea el sender desde la configuración.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPSender{cfg: cfg}
}

// Send envía un email con contenido HTML y texto plano.
func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	log := logger.L().With(
		logger.Component("SMTPSender"),
		logger.String("host", s.cfg.Host),
		logger.Int("port", s.cfg.Port),
	)
	log.Debug("sending email", logger.String("subject", subject))

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	// Preferimos multipart/alternative (txt + html)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return err
	}
	return nil
}
