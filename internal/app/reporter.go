package app

import (
	"errors"

	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/internal/ports"
	"github.com/bft-labs/wardsync/pkg/log"
)

// LogReporter writes reports to a logger.
type LogReporter struct {
	logger log.Logger
}

// NewLogReporter creates a reporter that logs at warn level.
func NewLogReporter(logger log.Logger) *LogReporter {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &LogReporter{logger: logger}
}

// Report implements ports.Reporter.
func (r *LogReporter) Report(err error, rc domain.ReportContext) {
	fields := []log.Field{
		log.Err(err),
		log.String("scope", rc.Scope),
		log.String("op", rc.Op),
	}
	if rc.ID != "" {
		fields = append(fields, log.String("id", rc.ID))
	}
	var re *domain.ReplayError
	if errors.As(err, &re) {
		fields = append(fields, log.Int("status", re.Status))
		if re.Code != "" {
			fields = append(fields, log.String("code", re.Code))
		}
	}
	r.logger.Warn("sync error reported", fields...)
}

// MultiReporter fans a report out to several sinks.
type MultiReporter []ports.Reporter

// Report implements ports.Reporter.
func (m MultiReporter) Report(err error, rc domain.ReportContext) {
	for _, r := range m {
		if r != nil {
			r.Report(err, rc)
		}
	}
}

// safeReporter shields callers from panicking sinks.
type safeReporter struct {
	inner  ports.Reporter
	logger log.Logger
}

func (s safeReporter) Report(err error, rc domain.ReportContext) {
	if s.inner == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reporter panicked",
				log.Any("panic", r),
				log.String("op", rc.Op),
				log.String("id", rc.ID),
			)
		}
	}()
	s.inner.Report(err, rc)
}
