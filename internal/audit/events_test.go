package audit

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEvent(t *testing.T) {
	event := BuildEvent("subject-1", "admin", ActionSessionRevoke, TargetTypeSession, "subject-9")

	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.Equal(t, "subject-1", event.ActorSubject)
	assert.Equal(t, "admin", event.ActorRole)
	assert.Equal(t, ActionSessionRevoke, event.Action)
	assert.Equal(t, TargetTypeSession, event.TargetType)
	assert.Equal(t, "subject-9", event.TargetID)
	assert.NotEmpty(t, event.Hash)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestBuildEventAnonymousActor(t *testing.T) {
	event := BuildEvent("", "", ActionSessionLoginFailed, TargetTypeSession, "")
	assert.Equal(t, "anonymous", event.ActorSubject)
}

func TestEventHashIsTamperEvident(t *testing.T) {
	event := BuildEvent("subject-1", "admin", ActionNewsCreate, TargetTypeNewsPost, "post-1")
	original := event.Hash

	tampered := event
	tampered.TargetID = "post-2"
	assert.NotEqual(t, original, computeEventHash(tampered))

	// Hash is computed over the payload minus hash/signature, so recomputing
	// on the untouched event reproduces it.
	assert.Equal(t, original, computeEventHash(event))
}

func TestBuildEventFromRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/session/login", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	event := BuildEvent("subject-1", "member", ActionSessionLogin, TargetTypeSession, "")
	event = BuildEventFromRequest(event, req)

	assert.Equal(t, "203.0.113.7", event.IPAddress)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.Equal(t, "POST /api/session/login", event.Resource)
}

func TestLoggerEmitterNeverFails(t *testing.T) {
	emitter := NewLoggerEmitter(zerolog.Nop())
	event := BuildEvent("subject-1", "member", ActionSessionLogout, TargetTypeSession, "")
	require.NoError(t, emitter.Emit(context.Background(), event))
}

func TestNoopEmitter(t *testing.T) {
	emitter := NewNoopEmitter()
	require.NoError(t, emitter.Emit(context.Background(), Event{}))
}
