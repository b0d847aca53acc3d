package auth

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for reset code metrics.
const (
	IssueOutcomeIssued         = "issued"
	IssueOutcomeUnknownSubject = "unknown_subject"
	IssueOutcomeDeliveryFailed = "delivery_failed"
	IssueOutcomeError          = "error"

	VerifyOutcomeSuccess        = "success"
	VerifyOutcomeInvalid        = "invalid"
	VerifyOutcomePasswordPolicy = "password_policy"
	VerifyOutcomeSubjectMissing = "subject_missing"
	VerifyOutcomeError          = "error"
	VerifyOutcomeMarkFailed     = "mark_failed"
)

// Outcome labels for role resolution metrics.
const (
	RoleOutcomeDurable    = "durable"
	RoleOutcomeHint       = "hint"
	RoleOutcomeInferred   = "inferred"
	RoleOutcomeUnresolved = "unresolved"
	RoleOutcomeError      = "error"
)

// ResetCodesIssued counts issue requests by outcome.
var ResetCodesIssued = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "talent_auth_reset_codes_issued_total",
		Help: "Total number of password reset code issue requests",
	},
	[]string{"outcome"},
)

// ResetCodesVerified counts verify requests by outcome. mark_failed is
// counted in addition to success when the used flag could not be written.
var ResetCodesVerified = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "talent_auth_reset_codes_verified_total",
		Help: "Total number of password reset code verify requests",
	},
	[]string{"outcome"},
)

// RoleResolutions counts role resolutions by outcome.
var RoleResolutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "talent_auth_role_resolutions_total",
		Help: "Total number of profile role resolutions",
	},
	[]string{"outcome"},
)

// RegisterMetrics registers the package metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ResetCodesIssued)
	reg.MustRegister(ResetCodesVerified)
	reg.MustRegister(RoleResolutions)
}

func recordIssueOutcome(outcome string) {
	ResetCodesIssued.WithLabelValues(outcome).Inc()
}

func recordVerifyOutcome(outcome string) {
	ResetCodesVerified.WithLabelValues(outcome).Inc()
}

func recordRoleResolution(outcome string) {
	RoleResolutions.WithLabelValues(outcome).Inc()
}
