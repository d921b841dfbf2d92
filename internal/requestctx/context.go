// Package requestctx provides request-scoped values (e.g. session_id) set by middleware.
package requestctx

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	patientIDKey contextKey = "patient_id"
)

// SetSessionID stores session_id in the context.
func SetSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionID returns the session_id from context, or "" if not set.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// SetPatientID stores patient_id in the context.
func SetPatientID(ctx context.Context, patientID string) context.Context {
	return context.WithValue(ctx, patientIDKey, patientID)
}

// PatientID returns the patient_id from context, or "" if not set.
func PatientID(ctx context.Context) string {
	v, _ := ctx.Value(patientIDKey).(string)
	return v
}
