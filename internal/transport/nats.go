// Package transport exposes the engine over NATS request/reply and a
// small HTTP surface. Both speak the same TurnRequest/TurnResponse wire
// format.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/duru-ai/converse/internal/models"
)

// TurnHandler is the engine-facing contract both transports call.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error)
	Snapshot(ctx context.Context, scopeKey string) (*models.StateSnapshot, error)
}

// NATSServer serves turns over a request/reply subject.
type NATSServer struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
	engine  TurnHandler
	logger  *zap.Logger
	sub     *nats.Subscription
}

// NewNATSServer connects and prepares the server. Serve must be called
// to start handling requests.
func NewNATSServer(url, subject string, timeout time.Duration, engine TurnHandler, logger *zap.Logger) (*NATSServer, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSServer{
		conn:    conn,
		subject: subject,
		timeout: timeout,
		engine:  engine,
		logger:  logger,
	}, nil
}

// Serve subscribes to the turn subject. Each message is handled in the
// subscription goroutine with a per-turn timeout.
func (s *NATSServer) Serve() error {
	sub, err := s.conn.QueueSubscribe(s.subject, "converse-workers", s.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("nats transport listening", zap.String("subject", s.subject))
	return nil
}

func (s *NATSServer) handle(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var req models.TurnRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respondError(msg, "", models.ErrorParseError, "request body is not valid JSON")
		return
	}
	if req.UserMessage == "" || req.Meta.ClientSessionID == "" {
		s.respondError(msg, "", models.ErrorBadRequest, "user_message and meta.client_session_id are required")
		return
	}

	resp, err := s.engine.HandleTurn(ctx, req)
	if err != nil {
		s.logger.Error("turn failed", zap.Error(err))
		s.respondError(msg, "", models.ErrorTurnFailed, "turn could not be processed")
		return
	}

	s.respond(msg, resp)
}

func (s *NATSServer) respond(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Error("failed to send reply", zap.Error(err))
	}
}

func (s *NATSServer) respondError(msg *nats.Msg, traceID, code, detail string) {
	s.respond(msg, models.ErrorResponse{
		TraceID:      traceID,
		ErrorCode:    code,
		ErrorMessage: detail,
		UserMessage:  "Sorry, something went wrong. Please try again.",
	})
}

// Close drains the subscription and closes the connection.
func (s *NATSServer) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
