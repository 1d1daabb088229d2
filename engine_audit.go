package goSession

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goSession/refresh"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshDeferred    = "refresh_deferred"
	auditEventRefreshFailure     = "refresh_failure"
	auditEventSessionEnded       = "session_ended"
	auditEventLogout             = "logout"
	auditEventRedirect           = "redirect"
	auditEventRehydrationTimeout = "rehydration_timeout"
)

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, err error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: eventType,
		Success:   success,
	}
	if user := e.sessions.User(); user != nil {
		event.UserID = user.ID
	}
	event.Role = e.roles.Role().String()
	if err != nil {
		event.Error = err.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRefreshAudit(ctx context.Context, res refresh.Result) {
	eventType := auditEventRefreshSuccess
	switch res.Outcome() {
	case refresh.OutcomeRetrySilently:
		eventType = auditEventRefreshDeferred
	case refresh.OutcomeMustLogout:
		eventType = auditEventRefreshFailure
	}
	e.emitAudit(ctx, eventType, res.Success, res.Err, func() map[string]string {
		m := map[string]string{
			"trigger":  triggerFromContext(ctx),
			"attempts": strconv.Itoa(res.Attempts),
		}
		if res.ErrorType != refresh.ErrorNone {
			m["error_type"] = string(res.ErrorType)
		}
		if res.Throttled {
			m["throttled"] = "true"
		}
		return m
	})
}
