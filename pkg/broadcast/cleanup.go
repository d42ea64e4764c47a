package broadcast

import (
	"io"

	"github.com/dd0wney/vega-authsync/pkg/logging"
)

// resourceCleanup closes registered resources in reverse order unless
// cleared. Constructors defer Cleanup and call Clear once fully built.
type resourceCleanup struct {
	resources []namedCloser
	logger    logging.Logger
}

type namedCloser struct {
	closer io.Closer
	name   string
}

func newResourceCleanup(logger logging.Logger) *resourceCleanup {
	return &resourceCleanup{
		resources: make([]namedCloser, 0, 4),
		logger:    logger,
	}
}

func (rc *resourceCleanup) Add(closer io.Closer, name string) {
	rc.resources = append(rc.resources, namedCloser{closer: closer, name: name})
}

// Cleanup closes everything still registered. Safe to call more than once.
func (rc *resourceCleanup) Cleanup() {
	for i := len(rc.resources) - 1; i >= 0; i-- {
		r := rc.resources[i]
		if err := r.closer.Close(); err != nil {
			rc.logger.Warn("failed to close during cleanup",
				logging.String("resource", r.name), logging.Error(err))
		}
	}
	rc.resources = rc.resources[:0]
}

func (rc *resourceCleanup) Clear() {
	rc.resources = rc.resources[:0]
}

func (rc *resourceCleanup) Len() int {
	return len(rc.resources)
}
