package pipeline

import (
	"context"

	"github.com/lodgeleads/enrich/internal/emailcrawl"
	"github.com/lodgeleads/enrich/internal/facility"
	"github.com/lodgeleads/enrich/internal/model"
	"github.com/lodgeleads/enrich/internal/scheduler"
)

// EmailProcessor crawls resolved websites for a contact email.
type EmailProcessor struct {
	store   facility.Store
	crawler *emailcrawl.Crawler
}

// NewEmailProcessor wires the email crawl.
func NewEmailProcessor(store facility.Store, crawler *emailcrawl.Crawler) *EmailProcessor {
	return &EmailProcessor{store: store, crawler: crawler}
}

func (p *EmailProcessor) Type() model.JobType { return model.JobTypeEmail }

// Process crawls one facility's website. A facility without a website is
// settled as email_failed on the spot, with no network activity at all.
func (p *EmailProcessor) Process(ctx context.Context, f *model.Facility) (scheduler.Outcome, error) {
	if !f.HasWebsite() {
		if f.Status != model.StatusEmailFailed {
			if err := setStatus(ctx, p.store, f, model.StatusEmailFailed); err != nil {
				return scheduler.Outcome{}, err
			}
		}
		return scheduler.Outcome{Message: "no website to scan"}, nil
	}

	if err := setStatus(ctx, p.store, f, model.StatusScanningEmail); err != nil {
		return scheduler.Outcome{}, err
	}

	email, err := p.crawler.Find(ctx, f.Website)
	if err != nil {
		if serr := setStatus(ctx, p.store, f, model.StatusEmailFailed); serr != nil {
			return scheduler.Outcome{}, serr
		}
		return scheduler.Outcome{}, err
	}

	if email == "" {
		if err := setStatus(ctx, p.store, f, model.StatusEmailFailed); err != nil {
			return scheduler.Outcome{}, err
		}
		return scheduler.Outcome{Message: "no email on site"}, nil
	}

	f.Email = email
	f.EmailSource = "crawl"
	if err := setStatus(ctx, p.store, f, model.StatusEmailFound); err != nil {
		return scheduler.Outcome{}, err
	}
	// Website and email both resolved: the record is fully enriched.
	if err := setStatus(ctx, p.store, f, model.StatusCompleted); err != nil {
		return scheduler.Outcome{}, err
	}

	return scheduler.Outcome{Found: true, Message: "email " + email}, nil
}
