package grading

import "strings"

// Status is the value of the queue's status column.
type Status string

// Status sentinels understood by the queue operators.
const (
	StatusPending           Status = "PENDING PROCESSING"
	StatusProcessing        Status = "PROCESSING"
	StatusCompleted         Status = "COMPLETED"
	StatusMainLinkMissing   Status = "ERROR: MAIN LINK MISSING"
	StatusErrorSavingResult Status = "ERROR SAVING RESULTS"
)

// maxErrorMessageLen bounds the free-form part of an ERROR status so it fits
// the status column.
const maxErrorMessageLen = 50

// ErrorStatus builds an "ERROR: <message>" status with the message cut to
// the display limit.
func ErrorStatus(msg string) Status {
	return Status("ERROR: " + Truncate(msg, maxErrorMessageLen))
}

// IsError reports whether s is any of the error variants.
func (s Status) IsError() bool {
	return strings.HasPrefix(string(s), "ERROR")
}

// IsTerminal reports whether a job in this status will not be picked up again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s.IsError()
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
