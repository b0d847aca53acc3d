package auth

import (
	"context"
	"fmt"
	"time"
)

const (
	resetCodeSender  = "Talento En Línea <noreply@talentoenlinea.com>"
	resetCodeSubject = "Código de Recuperación de Contraseña"
)

// From returns the sender address.
func (m ResetCodeEmail) From() string { return resetCodeSender }

// Subject returns the message subject line.
func (m ResetCodeEmail) Subject() string { return resetCodeSubject }

// Body renders the plain text body.
func (m ResetCodeEmail) Body(now time.Time) string {
	minutes := int(m.ExpiresAt.Sub(now).Round(time.Minute) / time.Minute)
	if minutes <= 0 {
		minutes = int(DefaultResetCodeTTL / time.Minute)
	}
	return fmt.Sprintf(
		"Tu código de recuperación es: %s\n\nEste código expirará en %d minutos.\n",
		m.Code, minutes,
	)
}

// LogMailer writes reset codes to a Logger instead of sending them. The code
// itself only appears at debug level.
type LogMailer struct {
	Logger Logger
}

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{Logger: logger}
}

func (l *LogMailer) SendResetCode(ctx context.Context, msg ResetCodeEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.Logger.Info("reset code mail to=%s subject=%q expires=%s", msg.To, msg.Subject(), msg.ExpiresAt.Format(time.RFC3339))
	l.Logger.Debug("reset code mail body to=%s: %s", msg.To, msg.Body(time.Now()))
	return nil
}
