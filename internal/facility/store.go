// Package facility is the record mutation boundary: the engine reads
// pending facilities from a Store and writes enrichment results back.
// Backends: sqlite for single-node runs, postgres for shared deployments.
package facility

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/lodgeleads/enrich/internal/model"
)

// ErrNotFound is returned when a facility id does not exist.
var ErrNotFound = eris.New("facility: not found")

// SelectorMode picks which facilities a job runs over.
type SelectorMode string

const (
	// ModeAll selects every facility still pending for the job type.
	ModeAll SelectorMode = "all"
	// ModeIDs selects exactly the listed facility ids.
	ModeIDs SelectorMode = "ids"
	// ModeFailed selects facilities whose previous run failed.
	ModeFailed SelectorMode = "failed"
)

// Selector scopes a job to a subset of facilities.
type Selector struct {
	Mode SelectorMode `json:"mode"`
	IDs  []string     `json:"ids,omitempty"`
}

// Validate rejects malformed selectors before a job is created.
func (s Selector) Validate() error {
	switch s.Mode {
	case ModeAll, ModeFailed:
		return nil
	case ModeIDs:
		if len(s.IDs) == 0 {
			return eris.New("facility: ids selector requires at least one id")
		}
		return nil
	default:
		return eris.Errorf("facility: unknown selector mode %q", s.Mode)
	}
}

// Store reads and mutates facility records. ListPending must never return
// a facility whose id is in exclude, which is how the scheduler guarantees
// each record is dispatched at most once per job.
type Store interface {
	// Get returns one facility or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Facility, error)

	// ListPending draws up to limit facilities still needing work for the
	// job type, scoped by the selector, excluding the given ids.
	ListPending(ctx context.Context, jobType model.JobType, sel Selector, limit int, exclude map[string]bool) ([]model.Facility, error)

	// Insert adds a facility record.
	Insert(ctx context.Context, f *model.Facility) error

	// UpdateEnrichment writes the enrichment fields and status back.
	// Identity fields are never touched.
	UpdateEnrichment(ctx context.Context, f *model.Facility) error

	Close() error
}

// pendingStatuses returns the status set that counts as pending for a
// selector mode and job type. Website discovery works facilities that have
// no website yet; email crawl works website-bearing facilities without an
// email, plus website-less ones so they can be settled as email_failed
// without any network activity.
func pendingStatuses(jobType model.JobType, mode SelectorMode) []model.FacilityStatus {
	switch jobType {
	case model.JobTypeWebsite:
		if mode == ModeFailed {
			return []model.FacilityStatus{model.StatusWebFailed}
		}
		return []model.FacilityStatus{model.StatusIdle, model.StatusWebFailed}
	case model.JobTypeEmail:
		if mode == ModeFailed {
			return []model.FacilityStatus{model.StatusEmailFailed}
		}
		return []model.FacilityStatus{
			model.StatusIdle, model.StatusWebFound, model.StatusWebFailed, model.StatusEmailFailed,
		}
	default:
		return nil
	}
}
