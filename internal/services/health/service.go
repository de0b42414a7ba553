package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB          Pinger
	PingTimeout time.Duration
}

// NewService constructs a health service. db may be nil when running on memory repos.
func NewService(db Pinger) *Service {
	return &Service{DB: db, PingTimeout: 2 * time.Second}
}

// Report is the health payload.
type Report struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// Status reports liveness plus database reachability. A missing database is
// reported as "memory" and does not fail the check.
func (s *Service) Status(ctx context.Context) Report {
	if s == nil || s.DB == nil {
		return Report{OK: true, Database: "memory"}
	}
	timeout := s.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		return Report{OK: false, Database: "down"}
	}
	return Report{OK: true, Database: "up"}
}
