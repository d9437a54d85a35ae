// Package metrics provides Prometheus metrics collectors for the auth gateway.
//
// Purpose:
//
//	This package defines and exports Prometheus metrics for the session
//	boundary: login outcomes, CSRF rejections, gatekeeper redirects, and
//	authoritative session verification. Metrics are registered globally and
//	served via the /metrics endpoint.
//
// Dependencies:
//   - github.com/prometheus/client_golang/prometheus: Prometheus Go client
//
// Key Responsibilities:
//   - Define metric collectors (counters)
//   - Register metrics with Prometheus registry
//   - Provide helper functions to record metric values
//
// Usage:
//
//	Metrics are automatically registered when the package is imported.
//	Use the exported functions to record metric values:
//	  metrics.RecordLoginSuccess()
//	  metrics.RecordLoginFailure("invalid_id_token")
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "unionhub"
	subsystem = "auth_gateway"
)

var (
	// LoginAttemptsTotal counts session login attempts by result.
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "login_attempts_total",
			Help:      "Total number of session login attempts by result",
		},
		[]string{"result"}, // result: success, failure
	)

	// LoginFailuresTotal counts session login failures by reason.
	LoginFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "login_failures_total",
			Help:      "Total number of session login failures by reason",
		},
		[]string{"reason"}, // reason: csrf, missing_id_token, invalid_id_token
	)

	// CSRFFailuresTotal counts CSRF assertion failures by reason.
	CSRFFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "csrf_failures_total",
			Help:      "Total number of CSRF assertion failures by reason",
		},
		[]string{"reason"}, // reason: token_mismatch, bad_origin, bad_referer
	)

	// GatekeeperRedirectsTotal counts edge redirects to the login page by reason.
	GatekeeperRedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gatekeeper_redirects_total",
			Help:      "Total number of edge redirects to the login page by reason",
		},
		[]string{"reason"}, // reason: no_cookie, malformed, expired
	)

	// SessionVerificationsTotal counts authoritative session verifications by outcome.
	SessionVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_verifications_total",
			Help:      "Total number of authoritative session cookie verifications by outcome",
		},
		[]string{"outcome"}, // outcome: valid, invalid, revoked
	)

	// SessionsRevokedTotal counts administrative session revocations.
	SessionsRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_revoked_total",
			Help:      "Total number of administrative session revocations",
		},
	)
)

// RecordLoginSuccess records a successful session login.
func RecordLoginSuccess() {
	LoginAttemptsTotal.WithLabelValues("success").Inc()
}

// RecordLoginFailure records a failed session login.
func RecordLoginFailure(reason string) {
	LoginAttemptsTotal.WithLabelValues("failure").Inc()
	LoginFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordCSRFFailure records a rejected CSRF assertion.
func RecordCSRFFailure(reason string) {
	CSRFFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordGatekeeperRedirect records an edge redirect to the login page.
func RecordGatekeeperRedirect(reason string) {
	GatekeeperRedirectsTotal.WithLabelValues(reason).Inc()
}

// RecordSessionVerification records an authoritative session verification outcome.
func RecordSessionVerification(outcome string) {
	SessionVerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionsRevoked records an administrative session revocation.
func RecordSessionsRevoked() {
	SessionsRevokedTotal.Inc()
}
