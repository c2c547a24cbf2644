package domain

import (
	"fmt"
	"time"
)

// StopReason records why a fetch stopped requesting pages.
type StopReason string

const (
	StopBudget         StopReason = "budget"
	StopPageCap        StopReason = "page_cap"
	StopShortPage      StopReason = "short_page"
	StopEmptyPage      StopReason = "empty_page"
	StopTransportError StopReason = "transport_error"
	StopCancelled      StopReason = "cancelled"
)

// ErrorKind classifies a failed cycle.
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindTransport   ErrorKind = "transport"
	ErrorKindEmptyResult ErrorKind = "empty_result"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindCancelled   ErrorKind = "cancelled"
	ErrorKindInternal    ErrorKind = "internal"
)

// CycleRun is the outcome of one fetch-normalize-upsert pass.
type CycleRun struct {
	ID         string     `json:"id"`
	Class      TokenClass `json:"class"`
	Budget     int        `json:"budget"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Pages      int        `json:"pages"`
	Seen       int        `json:"seen"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Failed     int        `json:"failed"`
	StopReason StopReason `json:"stop_reason"`
	Success    bool       `json:"success"`
	ErrorKind  ErrorKind  `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Duration returns how long the pass took.
func (r *CycleRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Written returns the number of records persisted (created or updated).
func (r *CycleRun) Written() int {
	return r.Created + r.Updated
}

// Summary renders the one-line cycle report.
func (r *CycleRun) Summary() string {
	status := "ok"
	if !r.Success {
		status = "failed(" + string(r.ErrorKind) + ")"
	}
	s := fmt.Sprintf("cycle %s class=%s status=%s pages=%d seen=%d created=%d updated=%d failed=%d stop=%s took=%s",
		shortID(r.ID), r.Class, status, r.Pages, r.Seen, r.Created, r.Updated, r.Failed,
		r.StopReason, r.Duration().Round(time.Millisecond))
	if r.Error != "" {
		s += " err=" + r.Error
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
