package email

import (
	"context"

	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

// LogSender es el transporte de desarrollo: no envía nada, registra el
// mensaje a nivel debug con la dirección enmascarada.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, _, textBody string) error {
	logger.From(ctx).Debug("email not sent (no smtp configured)",
		logger.Component("email.log"),
		logger.Email(to),
		logger.String("subject", subject),
		logger.String("body", textBody),
	)
	return nil
}
