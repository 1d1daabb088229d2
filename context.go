package goSession

import "context"

type triggerContextKey struct{}

// Renewal triggers recorded in audit metadata.
const (
	TriggerManual      = "manual"
	TriggerPeriodic    = "periodic"
	TriggerInterceptor = "interceptor"
)

// WithTrigger labels ctx with what caused a renewal. [Engine.Refresh] records it in the
// audit trail; unlabeled calls are recorded as [TriggerManual].
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerContextKey{}, trigger)
}

func triggerFromContext(ctx context.Context) string {
	if ctx == nil {
		return TriggerManual
	}
	trigger, _ := ctx.Value(triggerContextKey{}).(string)
	if trigger == "" {
		return TriggerManual
	}
	return trigger
}
