package ports

import "github.com/bft-labs/wardsync/internal/domain"

// Reporter is a fire-and-forget error sink.
// Report must not block for long and must never fail the caller.
type Reporter interface {
	Report(err error, rc domain.ReportContext)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(err error, rc domain.ReportContext)

// Report calls f(err, rc).
func (f ReporterFunc) Report(err error, rc domain.ReportContext) {
	f(err, rc)
}
