package audit

import (
	"encoding/json"
	"log"
	"time"
)

// Event types written to the audit trail
const (
	EventSecurity     = "SECURITY"
	EventIntent       = "INTENT"
	EventConfirmation = "CONFIRMATION"
	EventSweep        = "SWEEP"
	EventError        = "ERROR"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger writes one JSON line per event. The zero value is ready to use.
type Logger struct {
	out *log.Logger
}

func NewLogger() *Logger {
	return &Logger{}
}

// NewLoggerTo is used by tests to capture the trail
func NewLoggerTo(out *log.Logger) *Logger {
	return &Logger{out: out}
}

func (a *Logger) LogSecurity(provider, reason, remoteAddr string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: EventSecurity,
		Provider:  provider,
		Status:    "REJECTED",
		Details: map[string]string{
			"reason":      reason,
			"remote_addr": remoteAddr,
		},
	})
}

func (a *Logger) LogIntent(reference, provider, amount, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: EventIntent,
		Reference: reference,
		Provider:  provider,
		Amount:    amount,
		Status:    status,
	})
}

func (a *Logger) LogConfirmation(reference, provider, amount, status, result string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: EventConfirmation,
		Reference: reference,
		Provider:  provider,
		Amount:    amount,
		Status:    status,
		Details:   map[string]string{"result": result},
	})
}

func (a *Logger) LogSweep(reference, provider, verdict string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: EventSweep,
		Reference: reference,
		Provider:  provider,
		Status:    verdict,
	})
}

func (a *Logger) LogError(reference string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: EventError,
		Reference: reference,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	if a != nil && a.out != nil {
		a.out.Printf("AUDIT: %s", string(data))
		return
	}
	log.Printf("AUDIT: %s", string(data))
}
