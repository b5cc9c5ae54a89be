package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	auth "github.com/memoria-app/auth"
)

type metricsSource interface {
	MetricsSnapshot() auth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	ID   auth.MetricID
	Name string
	Help string
}

var counterDefs = []counterDef{
	{auth.MetricLoginSuccess, "memauth_login_success_total", "Successful logins."},
	{auth.MetricLoginFailure, "memauth_login_failure_total", "Failed logins."},
	{auth.MetricSignupSuccess, "memauth_signup_success_total", "Successful signups."},
	{auth.MetricSignupDuplicate, "memauth_signup_duplicate_total", "Signups rejected for an existing email."},
	{auth.MetricSignupRejected, "memauth_signup_rejected_total", "Signups rejected for validation or policy reasons."},
	{auth.MetricRefreshSuccess, "memauth_refresh_success_total", "Successful refresh rotations."},
	{auth.MetricRefreshFailure, "memauth_refresh_failure_total", "Failed refresh attempts."},
	{auth.MetricRefreshReuseDetected, "memauth_refresh_reuse_detected_total", "Refresh credential reuse detections."},
	{auth.MetricLogout, "memauth_logout_total", "Explicit logouts."},
	{auth.MetricPasswordChangeSuccess, "memauth_password_change_success_total", "Successful password changes."},
	{auth.MetricPasswordChangeInvalidOld, "memauth_password_change_invalid_old_total", "Password changes rejected for a wrong current password."},
	{auth.MetricPasswordChangeReuseRejected, "memauth_password_change_reuse_rejected_total", "Password changes rejected for reusing the current password."},
	{auth.MetricProfileUpdated, "memauth_profile_updated_total", "Profile updates."},
	{auth.MetricAccountDeleted, "memauth_account_deleted_total", "Account deletions."},
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [auth.Engine].
func NewPrometheusExporter(engine *auth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from a custom
// metrics source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range counterDefs {
		writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}

	writeCounter(&b, "memauth_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
