package session

import (
	"context"
	"errors"
	"sync"

	"chatcore/internal/auth"
	"chatcore/internal/commands"
	"chatcore/internal/events"
	"chatcore/internal/metrics"
	"chatcore/internal/services"
	"chatcore/internal/typing"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	outcomeOK          = "ok"
	outcomeIgnored     = "ignored"
	outcomeError       = "error"
	outcomeRateLimited = "rate_limited"
)

// Frame is one encoded outbound message. AckMessageID is set for chat
// messages written to someone other than their author; the transport
// acknowledges delivery once the frame hits the socket.
type Frame struct {
	Payload      []byte
	AckMessageID *uuid.UUID
}

// Session is one live connection. Dispatch must be called from a single
// goroutine; Deliver may be called from any.
type Session struct {
	id                string
	identity          auth.Identity
	conversationID    uuid.UUID
	notificationsOnly bool

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter
	manager   *Manager
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) UserID() uuid.UUID {
	return s.identity.UserID
}

func (s *Session) Identity() auth.Identity {
	return s.identity
}

func (s *Session) ConversationID() uuid.UUID {
	return s.conversationID
}

// Frames is the outbound queue drained by the transport writer.
func (s *Session) Frames() <-chan Frame {
	return s.send
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Deliver queues a routed frame without blocking. It reports false when the
// buffer is full or the session is closed.
func (s *Session) Deliver(ev events.Event, payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	frame := Frame{Payload: payload}
	if cm, ok := ev.(events.ChatMessage); ok {
		if cm.Message.AuthorID == nil || *cm.Message.AuthorID != s.identity.UserID {
			id := cm.Message.ID
			frame.AckMessageID = &id
		}
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears the session down exactly once, however many times and from
// however many goroutines it is called.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.manager.close(s)
	})
}

// Ack records that a chat message frame reached this session's socket.
func (s *Session) Ack(ctx context.Context, messageID uuid.UUID) error {
	_, err := s.manager.delivery.MarkDelivered(ctx, s.identity.UserID, []uuid.UUID{messageID})
	return err
}

// Dispatch parses and executes one inbound frame. Failures are reported to
// this session only, as an error frame; the returned error is the same
// failure for the caller's logging.
func (s *Session) Dispatch(ctx context.Context, raw []byte) error {
	if s.notificationsOnly {
		return nil
	}
	if s.limiter != nil && !s.limiter.Allow() {
		metrics.RateLimitHits.WithLabelValues("command").Inc()
		metrics.CommandsTotal.WithLabelValues("any", outcomeRateLimited).Inc()
		s.sendError(chat_errors.ErrRateLimited)
		return chat_errors.ErrRateLimited
	}

	cmd, err := commands.Parse(raw)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("invalid", outcomeError).Inc()
		s.sendError(err)
		return err
	}

	cmdType := string(cmd.CommandType())
	handled, err := s.execute(ctx, cmd)
	switch {
	case errors.Is(err, chat_errors.ErrConflict):
		metrics.CommandsTotal.WithLabelValues(cmdType, outcomeIgnored).Inc()
		return nil
	case err != nil:
		metrics.CommandsTotal.WithLabelValues(cmdType, outcomeError).Inc()
		s.manager.log.Warn("command_failed", s, zap.String("command", cmdType), zap.Error(err))
		s.sendError(err)
		return err
	case !handled:
		metrics.CommandsTotal.WithLabelValues(cmdType, outcomeIgnored).Inc()
		return nil
	}
	metrics.CommandsTotal.WithLabelValues(cmdType, outcomeOK).Inc()
	return nil
}

// execute runs one command. handled is false for commands that were valid
// but had nothing to do.
func (s *Session) execute(ctx context.Context, cmd commands.Command) (handled bool, err error) {
	switch c := cmd.(type) {
	case commands.SendMessage:
		return s.sendMessage(ctx, c)
	case commands.SetTyping:
		return s.setTyping(ctx, c)
	case commands.ReadReceipt:
		return s.readReceipt(ctx, c)
	case commands.EditMessage:
		return s.editMessage(ctx, c)
	case commands.DeleteMessage:
		return s.deleteMessage(ctx, c)
	case commands.React:
		return s.react(ctx, c)
	}
	return false, commands.ErrUnknownCommand
}

func (s *Session) sendMessage(ctx context.Context, c commands.SendMessage) (bool, error) {
	if c.Blank() {
		return false, nil
	}
	m := s.manager
	msg, err := m.messages.CreateMessage(ctx, services.CreateMessageInput{
		ConversationID: s.conversationID,
		AuthorID:       s.identity.UserID,
		AuthorName:     s.identity.Username,
		Content:        c.Message,
		ReplyToID:      c.ReplyTo,
	})
	if err != nil {
		return false, err
	}
	if _, err := m.presence.UpdateActivity(ctx, s.identity.UserID, &s.conversationID); err != nil {
		m.log.Warn("activity_update_failed", s, zap.Error(err))
	}
	s.publish(ctx, events.ChatMessage{Message: events.NewMessagePayload(msg)})
	return true, nil
}

func (s *Session) setTyping(ctx context.Context, c commands.SetTyping) (bool, error) {
	if err := s.ensureMember(ctx); err != nil {
		return false, err
	}
	m := s.manager
	if c.IsTyping {
		err := m.typing.Set(ctx, typing.Indicator{
			ConversationID: s.conversationID,
			UserID:         s.identity.UserID,
			Username:       s.identity.Username,
			StartedAt:      m.now(),
		})
		if err != nil {
			return false, err
		}
	} else if err := m.typing.Clear(ctx, s.conversationID, s.identity.UserID); err != nil {
		return false, err
	}
	s.publish(ctx, events.Typing{
		UserID:   s.identity.UserID,
		Username: s.identity.Username,
		IsTyping: c.IsTyping,
	})
	return true, nil
}

func (s *Session) readReceipt(ctx context.Context, c commands.ReadReceipt) (bool, error) {
	if err := s.ensureMember(ctx); err != nil {
		return false, err
	}
	matched, err := s.manager.delivery.MarkRead(ctx, s.identity.UserID, s.conversationID, c.MessageIDs)
	if err != nil {
		return false, err
	}
	if len(matched) == 0 {
		return false, nil
	}
	s.publish(ctx, events.ReadReceipt{UserID: s.identity.UserID, MessageIDs: matched})
	return true, nil
}

func (s *Session) editMessage(ctx context.Context, c commands.EditMessage) (bool, error) {
	if c.Blank() {
		return false, nil
	}
	msg, err := s.manager.messages.EditMessage(ctx, s.conversationID, c.MessageID, s.identity.UserID, c.Content)
	if err != nil {
		return false, err
	}
	s.publish(ctx, events.MessageEdited{Message: events.NewMessagePayload(msg)})
	return true, nil
}

func (s *Session) deleteMessage(ctx context.Context, c commands.DeleteMessage) (bool, error) {
	msg, err := s.manager.messages.SoftDeleteMessage(ctx, s.conversationID, c.MessageID, s.identity.UserID)
	if err != nil {
		return false, err
	}
	s.publish(ctx, events.MessageDeleted{MessageID: msg.ID, UserID: s.identity.UserID})
	return true, nil
}

func (s *Session) react(ctx context.Context, c commands.React) (bool, error) {
	var (
		changed bool
		err     error
	)
	if c.Action == events.ReactionAdd {
		changed, err = s.manager.messages.AddReaction(ctx, s.conversationID, c.MessageID, s.identity.UserID, c.Emoji)
	} else {
		changed, err = s.manager.messages.RemoveReaction(ctx, s.conversationID, c.MessageID, s.identity.UserID, c.Emoji)
	}
	if err != nil || !changed {
		return false, err
	}
	s.publish(ctx, events.Reaction{
		MessageID: c.MessageID,
		UserID:    s.identity.UserID,
		Emoji:     c.Emoji,
		Action:    c.Action,
	})
	return true, nil
}

// ensureMember guards commands whose store calls do not check membership
// themselves; the membership may have closed since Open.
func (s *Session) ensureMember(ctx context.Context) error {
	ok, err := s.manager.members.IsActiveMember(ctx, s.identity.UserID, s.conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return chat_errors.ErrForbidden
	}
	return nil
}

// publish broadcasts a committed change. A failed broadcast does not undo
// the change; it is logged.
func (s *Session) publish(ctx context.Context, ev events.Event) {
	if err := s.manager.router.Publish(ctx, s.conversationID, ev); err != nil {
		s.manager.log.Error("broadcast_failed", s, err, zap.String("event_type", string(ev.Kind())))
	}
}

func (s *Session) sendError(err error) {
	payload, encErr := events.Encode(events.Error{Message: ErrorMessage(err)})
	if encErr != nil {
		return
	}
	select {
	case <-s.done:
	case s.send <- Frame{Payload: payload}:
	default:
		s.manager.log.Warn("error_frame_dropped", s)
	}
}

// ErrorMessage is the client-facing text of an error frame.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, chat_errors.ErrInvalidPayload), errors.Is(err, chat_errors.ErrInvalidInput):
		return "Invalid payload"
	case errors.Is(err, commands.ErrUnknownCommand):
		return "Unknown command type"
	case errors.Is(err, chat_errors.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, chat_errors.ErrNotFound):
		return "Message not found"
	case errors.Is(err, chat_errors.ErrRateLimited):
		return "rate limited"
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return "Unauthorized"
	}
	return "Internal error"
}
