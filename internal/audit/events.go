// Package audit provides audit event emission for the auth gateway.
//
// Purpose:
//   This package defines the audit event structure and provides an interface
//   for emitting audit events. Session lifecycle operations (login, logout,
//   revoke) and content mutations emit events so operators can reconstruct
//   who did what, when, and from where.
//
// Dependencies:
//   - github.com/google/uuid: UUID generation for event IDs
//   - github.com/rs/zerolog: Structured logging for the logger-backed emitter
//   - github.com/segmentio/kafka-go: Kafka producer for the production emitter
//
// Key Responsibilities:
//   - Event struct defines the audit event schema
//   - Emitter interface abstracts Kafka vs logger implementations
//   - LoggerEmitter provides a development-friendly emitter (logs events)
//   - KafkaEmitter produces to the configured audit topic
//
// Debugging Notes:
//   - LoggerEmitter logs events as JSON for development visibility
//   - Events include actor_subject, action, target_id for traceability
//   - Hash field gives per-event tamper evidence; signature reserved
//
// Thread Safety:
//   - Emitter implementations must be safe for concurrent use
//
// Error Handling:
//   - Emit methods return errors for production monitoring; callers log and
//     continue, an audit failure never fails the user request
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event represents an audit event for a session or content operation.
// All state-mutating operations should emit audit events.
type Event struct {
	EventID      uuid.UUID      `json:"event_id"`
	ActorSubject string         `json:"actor_subject"` // identity-provider subject, or "anonymous"
	ActorRole    string         `json:"actor_role,omitempty"`
	Action       string         `json:"action"` // "session.login", "news.create", etc.
	TargetID     string         `json:"target_id,omitempty"`
	TargetType   string         `json:"target_type,omitempty"` // "session", "news_post", "club"
	Resource     string         `json:"resource,omitempty"`    // Resource path or identifier
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Hash         string         `json:"hash"`                // SHA256 of event payload (for tamper detection)
	Signature    string         `json:"signature"`           // Reserved for Ed25519 signature (future)
	CreatedAt    time.Time      `json:"created_at"`
}

// Emitter defines the interface for audit event emission.
// Implementations can use Kafka, logger, or other backends.
type Emitter interface {
	// Emit sends an audit event.
	// Returns an error if emission fails (for monitoring/alerting).
	Emit(ctx context.Context, event Event) error
}

// LoggerEmitter logs audit events as structured JSON. Used for local
// development and as the fallback when Kafka is not configured.
type LoggerEmitter struct {
	logger zerolog.Logger
}

// NewLoggerEmitter creates a logger-based audit emitter.
func NewLoggerEmitter(logger zerolog.Logger) *LoggerEmitter {
	return &LoggerEmitter{logger: logger.With().Str("component", "audit").Logger()}
}

// Emit logs the audit event as structured JSON.
// Never fails (best-effort logging for development).
func (e *LoggerEmitter) Emit(ctx context.Context, event Event) error {
	e.logger.Info().
		Str("event_id", event.EventID.String()).
		Str("actor_subject", event.ActorSubject).
		Str("actor_role", event.ActorRole).
		Str("action", event.Action).
		Str("target_type", event.TargetType).
		Str("target_id", event.TargetID).
		Interface("metadata", event.Metadata).
		Msg("audit event")
	return nil
}

// NoopEmitter is a no-op implementation that discards all events.
// Useful for testing or when audit is disabled.
type NoopEmitter struct{}

// NewNoopEmitter creates a no-op audit emitter.
func NewNoopEmitter() *NoopEmitter {
	return &NoopEmitter{}
}

// Emit discards the event (no-op).
func (e *NoopEmitter) Emit(ctx context.Context, event Event) error {
	return nil
}

// BuildEvent constructs an audit event from common parameters.
// Automatically generates event ID, hash, and timestamps.
func BuildEvent(actorSubject, actorRole, action, targetType, targetID string) Event {
	if actorSubject == "" {
		actorSubject = "anonymous"
	}

	event := Event{
		EventID:      uuid.New(),
		ActorSubject: actorSubject,
		ActorRole:    actorRole,
		Action:       action,
		TargetType:   targetType,
		TargetID:     targetID,
		CreatedAt:    time.Now().UTC(),
	}
	event.Hash = computeEventHash(event)
	return event
}

// BuildEventFromRequest enriches an audit event with HTTP request metadata.
func BuildEventFromRequest(event Event, r *http.Request) Event {
	event.IPAddress = getClientIP(r)
	event.UserAgent = r.Header.Get("User-Agent")
	if event.Resource == "" {
		event.Resource = r.Method + " " + r.URL.Path
	}
	return event
}

// computeEventHash computes SHA256 hash of event payload (excluding hash/signature).
func computeEventHash(event Event) string {
	// Create a copy without hash/signature for hashing
	eventCopy := event
	eventCopy.Hash = ""
	eventCopy.Signature = ""

	payload, err := json.Marshal(eventCopy)
	if err != nil {
		// Fallback: hash the string representation
		payload = []byte(fmt.Sprintf("%+v", eventCopy))
	}

	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}

// getClientIP extracts the client IP from the request, handling proxies.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (from load balancer/proxy)
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	// Check X-Real-IP header
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	// Fallback to RemoteAddr
	return r.RemoteAddr
}

// Common action constants for consistency.
const (
	ActionSessionLogin       = "session.login"
	ActionSessionLoginFailed = "session.login_failed"
	ActionSessionLogout      = "session.logout"
	ActionSessionRevoke      = "session.revoke"
	ActionNewsCreate         = "news.create"
	ActionNewsUpdate         = "news.update"
	ActionNewsDelete         = "news.delete"
	ActionClubUpdate         = "club.update"
)

// Common target type constants.
const (
	TargetTypeSession  = "session"
	TargetTypeNewsPost = "news_post"
	TargetTypeClub     = "club"
)
