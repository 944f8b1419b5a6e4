package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jhoicas/Stoq-api/internal/application/verification"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/pkg/config"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

var (
	_ verification.Notifier = (*SMTPNotifier)(nil)
	_ verification.Notifier = (*LogNotifier)(nil)
)

// Sender envía mensajes ya armados (*gomail.Dialer lo implementa).
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier envía el código de verificación por correo.
type SMTPNotifier struct {
	sender Sender
	from   string
}

// NewSMTPNotifier construye el notificador a partir de la configuración SMTP.
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return NewNotifier(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), cfg.From)
}

// NewNotifier construye el notificador con un Sender arbitrario.
func NewNotifier(sender Sender, from string) *SMTPNotifier {
	return &SMTPNotifier{sender: sender, from: from}
}

// NotifyCode arma y envía el mensaje. Respeta la cancelación de ctx aunque el envío siga en curso.
func (n *SMTPNotifier) NotifyCode(ctx context.Context, principal string, scenario entity.Scenario, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", principal)
	msg.SetHeader("Subject", subject(scenario))
	msg.SetBody("text/plain", body(scenario, code))

	done := make(chan error, 1)
	go func() { done <- n.sender.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("enviar correo: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func subject(scenario entity.Scenario) string {
	switch scenario {
	case entity.ScenarioResetPassword:
		return "Código para restablecer tu contraseña"
	default:
		return "Código de verificación de registro"
	}
}

func body(scenario entity.Scenario, code string) string {
	action := "completar tu registro"
	if scenario == entity.ScenarioResetPassword {
		action = "restablecer tu contraseña"
	}
	return fmt.Sprintf("Tu código para %s es: %s\n\nVence en pocos minutos. Si no lo solicitaste, ignora este mensaje.\n", action, code)
}

// LogNotifier registra el envío sin mandar correo (SMTP no configurado). Nunca escribe el código.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier construye el notificador simulado.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("mail")}
}

func (n *LogNotifier) NotifyCode(_ context.Context, principal string, scenario entity.Scenario, _ string) error {
	n.log.Info().Str("principal", principal).Str("scenario", string(scenario)).Msg("SMTP no configurado, código no enviado")
	return nil
}
