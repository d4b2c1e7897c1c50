package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"launchpad-backend/pkg/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType names an auditable security event
type EventType string

const (
	EventLoginFailed        EventType = "login_failed"
	EventLoginBlocked       EventType = "login_blocked"
	EventLoginSuccess       EventType = "login_success"
	EventAutoLoginExchanged EventType = "autologin_exchanged"
	EventPasswordReset      EventType = "password_reset"
	EventRateLimitTriggered EventType = "rate_limit_triggered"
	EventUnauthorizedAccess EventType = "unauthorized_access"
	EventForbiddenAccess    EventType = "forbidden_access"
	EventCSRFViolation      EventType = "csrf_violation"
	EventWebhookRejected    EventType = "webhook_rejected"
	EventUserCreated        EventType = "user_created"
	EventUserDeleted        EventType = "user_deleted"
	EventRoleModified       EventType = "role_modified"
	EventDataExport         EventType = "data_export"
)

// Severity is derived from the event type, never supplied by callers
type Severity string

const (
	SeverityInfo   Severity = "INFO"
	SeverityMedium Severity = "MEDIUM"
	SeverityWarn   Severity = "WARN"
	SeverityHigh   Severity = "HIGH"
)

var eventSeverity = map[EventType]Severity{
	EventLoginSuccess:       SeverityInfo,
	EventAutoLoginExchanged: SeverityInfo,

	EventDataExport:    SeverityMedium,
	EventUserCreated:   SeverityMedium,
	EventPasswordReset: SeverityMedium,

	EventLoginFailed:        SeverityWarn,
	EventRateLimitTriggered: SeverityWarn,
	EventWebhookRejected:    SeverityWarn,
	EventUnauthorizedAccess: SeverityWarn,

	EventLoginBlocked:    SeverityHigh,
	EventForbiddenAccess: SeverityHigh,
	EventCSRFViolation:   SeverityHigh,
	EventUserDeleted:     SeverityHigh,
	EventRoleModified:    SeverityHigh,
}

// GetSeverity returns the severity for an event type, MEDIUM when unmapped
func GetSeverity(eventType EventType) Severity {
	if s, ok := eventSeverity[eventType]; ok {
		return s
	}
	return SeverityMedium
}

// SecurityEvent is one audit record
type SecurityEvent struct {
	Timestamp    time.Time      `json:"timestamp"`
	Event        EventType      `json:"event"`
	Severity     Severity       `json:"severity"`
	SubjectType  string         `json:"subject_type,omitempty"`  // "email", "ip", "user_id"
	SubjectValue string         `json:"subject_value,omitempty"` // masked or hashed
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// PersistFunc stores an event; see SecurityEventRepository
type PersistFunc func(ctx context.Context, event SecurityEvent) error

// SecurityLogger writes audit events to the process logger and, when a
// persist func is set, to the security_events table.
type SecurityLogger struct {
	log     func() *zap.Logger
	persist PersistFunc
	timeout time.Duration
}

var defaultLogger = &SecurityLogger{log: func() *zap.Logger { return logger.Log }, timeout: 5 * time.Second}

// DefaultLogger returns the process-wide audit logger
func DefaultLogger() *SecurityLogger {
	return defaultLogger
}

// SetPersistFunc enables database persistence. Call once during startup.
func (sl *SecurityLogger) SetPersistFunc(f PersistFunc) {
	sl.persist = f
}

func levelFor(s Severity) zapcore.Level {
	switch s {
	case SeverityInfo, SeverityMedium:
		return zapcore.InfoLevel
	case SeverityHigh:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// Log records an event. Persistence runs detached from the request context.
func (sl *SecurityLogger) Log(_ context.Context, event SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Severity = GetSeverity(event.Event)

	fields := []zap.Field{
		zap.String("event", string(event.Event)),
		zap.String("severity", string(event.Severity)),
	}
	if event.SubjectType != "" {
		fields = append(fields, zap.String("subject_type", event.SubjectType), zap.String("subject_value", event.SubjectValue))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", event.UserAgent))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	sl.log().Log(levelFor(event.Severity), "security event", fields...)

	if sl.persist == nil {
		return
	}
	go func(e SecurityEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), sl.timeout)
		defer cancel()
		if err := sl.persist(ctx, e); err != nil {
			sl.log().Error("failed to persist security event", zap.Error(err))
		}
	}(event)
}

// LogLoginFailed records a rejected sign-in
func (sl *SecurityLogger) LogLoginFailed(ctx context.Context, email, ip, userAgent, requestID, reason string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventLoginFailed,
		SubjectType:  "email",
		SubjectValue: MaskEmail(email),
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      map[string]any{"reason": reason},
	})
}

// LogRateLimitTriggered records a throttled request
func (sl *SecurityLogger) LogRateLimitTriggered(ctx context.Context, ip, userAgent, requestID, endpoint string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventRateLimitTriggered,
		SubjectType:  "ip",
		SubjectValue: ip,
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      map[string]any{"endpoint": endpoint},
	})
}

// LogAdminAction records a privileged change made by actorID
func (sl *SecurityLogger) LogAdminAction(ctx context.Context, event EventType, actorID, targetID, ip, requestID string) {
	sl.Log(ctx, SecurityEvent{
		Event:        event,
		SubjectType:  "user_id",
		SubjectValue: HashValue(actorID),
		IP:           ip,
		RequestID:    requestID,
		Details:      map[string]any{"target": HashValue(targetID)},
	})
}

// MaskEmail masks an email for logging, e.g. "a***@example.com"
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	atIndex := -1
	for i, c := range email {
		if c == '@' {
			atIndex = i
			break
		}
	}
	if atIndex <= 1 {
		return "***" + email[1:]
	}
	return string(email[0]) + "***" + email[atIndex:]
}

// HashValue returns a short SHA-256 prefix for logging identifiers
func HashValue(value string) string {
	if value == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8])
}
