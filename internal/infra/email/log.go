package email

import (
	"context"

	"go.uber.org/zap"
)

// LogSender renders messages and logs them instead of delivering. It is
// used when no SMTP host is configured.
type LogSender struct {
	renderer *Renderer
	logger   *zap.Logger
}

func NewLogSender(renderer *Renderer, logger *zap.Logger) *LogSender {
	return &LogSender{renderer: renderer, logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, templateName string, data any) error {
	body, err := s.renderer.Render(templateName, data)
	if err != nil {
		return err
	}
	s.logger.Info("email not delivered, no SMTP host configured",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("template", templateName),
		zap.Int("body_bytes", len(body)))
	return nil
}

var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*LogSender)(nil)
)
