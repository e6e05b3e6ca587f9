// Package pipeline implements the per-job-type record processors: the
// website discovery waterfall (generate, DNS-filter, validate, search
// fallback) and the email crawl. Processors own facility status
// transitions; job bookkeeping stays in the scheduler.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lodgeleads/enrich/internal/dnsfilter"
	"github.com/lodgeleads/enrich/internal/domaingen"
	"github.com/lodgeleads/enrich/internal/facility"
	"github.com/lodgeleads/enrich/internal/model"
	"github.com/lodgeleads/enrich/internal/scheduler"
	"github.com/lodgeleads/enrich/internal/search"
	"github.com/lodgeleads/enrich/internal/validate"
)

// WebsiteProcessor resolves facility websites.
type WebsiteProcessor struct {
	store     facility.Store
	gen       *domaingen.Generator
	dns       *dnsfilter.Filter
	validator *validate.Validator
	fallback  *search.Fallback
}

// NewWebsiteProcessor wires the discovery waterfall.
func NewWebsiteProcessor(store facility.Store, gen *domaingen.Generator, dns *dnsfilter.Filter, validator *validate.Validator, fallback *search.Fallback) *WebsiteProcessor {
	return &WebsiteProcessor{
		store:     store,
		gen:       gen,
		dns:       dns,
		validator: validator,
		fallback:  fallback,
	}
}

func (p *WebsiteProcessor) Type() model.JobType { return model.JobTypeWebsite }

// Process runs one facility through the waterfall: generated candidates
// first, search fallback second, web_failed when both come up empty.
func (p *WebsiteProcessor) Process(ctx context.Context, f *model.Facility) (scheduler.Outcome, error) {
	if err := setStatus(ctx, p.store, f, model.StatusSearchingWeb); err != nil {
		return scheduler.Outcome{}, err
	}

	res, err := p.resolve(ctx, f)
	if err != nil {
		// The record settles as failed; the error still reaches the job log.
		if serr := setStatus(ctx, p.store, f, model.StatusWebFailed); serr != nil {
			return scheduler.Outcome{}, serr
		}
		return scheduler.Outcome{}, err
	}

	if res == nil {
		if err := setStatus(ctx, p.store, f, model.StatusWebFailed); err != nil {
			return scheduler.Outcome{}, err
		}
		return scheduler.Outcome{Message: "no website found"}, nil
	}

	f.Website = res.URL
	f.WebsiteSource = res.Source
	f.WebsiteScore = res.Score
	if err := setStatus(ctx, p.store, f, model.StatusWebFound); err != nil {
		return scheduler.Outcome{}, err
	}

	return scheduler.Outcome{
		Found:   true,
		Message: fmt.Sprintf("website %s (score %.0f, %s)", res.URL, res.Score, res.Source),
	}, nil
}

func (p *WebsiteProcessor) resolve(ctx context.Context, f *model.Facility) (*validate.Result, error) {
	candidates := p.gen.Generate(f.Name)
	if len(candidates) > 0 {
		alive := p.dns.Filter(ctx, candidates)
		zap.L().Debug("pipeline: candidates resolved",
			zap.String("facility", f.Name),
			zap.Int("generated", len(candidates)),
			zap.Int("alive", len(alive)),
		)
		res, err := p.validator.First(ctx, f.Name, f.City, alive)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return p.fallback.Resolve(ctx, f.Name, f.City)
}

// setStatus validates the transition, applies it and persists the record.
// An illegal transition is a programming fault, not a provider failure.
func setStatus(ctx context.Context, store facility.Store, f *model.Facility, to model.FacilityStatus) error {
	if !model.CanTransition(f.Status, to) {
		return eris.Errorf("pipeline: illegal status transition %s -> %s for %s", f.Status, to, f.ID)
	}
	f.Status = to
	if err := store.UpdateEnrichment(ctx, f); err != nil {
		return eris.Wrapf(err, "pipeline: persist status %s", to)
	}
	return nil
}
