package session

import (
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessionLogger tags every line with the session it belongs to.
type sessionLogger struct {
	logger *zap.Logger
}

func newSessionLogger(l *logger.Logger) *sessionLogger {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &sessionLogger{logger: l.Logger.With(zap.String("component", "session"))}
}

func (l *sessionLogger) fields(event string, s *Session, extra []zap.Field) []zap.Field {
	all := []zap.Field{
		zap.String("event", event),
		zap.String("user_id", s.identity.UserID.String()),
		zap.String("session_id", s.id),
	}
	if s.conversationID != uuid.Nil {
		all = append(all, zap.String("conversation_id", s.conversationID.String()))
	}
	return append(all, extra...)
}

func (l *sessionLogger) Info(event string, s *Session, fields ...zap.Field) {
	l.logger.Info("session_event", l.fields(event, s, fields)...)
}

func (l *sessionLogger) Warn(event string, s *Session, fields ...zap.Field) {
	l.logger.Warn("session_warning", l.fields(event, s, fields)...)
}

func (l *sessionLogger) Error(event string, s *Session, err error, fields ...zap.Field) {
	l.logger.Error("session_error", l.fields(event, s, append(fields, zap.Error(err)))...)
}
