package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"subgate-bot/internal/channels"
	"subgate-bot/internal/membership"
)

// RequirementSource yields the requirements in force at a given time
type RequirementSource interface {
	ActiveRequirements(ctx context.Context, now time.Time) ([]channels.Requirement, error)
}

// Prober answers a single membership question
type Prober interface {
	CheckMembership(ctx context.Context, channelID, userID int64) membership.Outcome
}

// UnsubscribedResolver computes the requirements a user has not satisfied
type UnsubscribedResolver interface {
	Resolve(ctx context.Context, userID int64, now time.Time) ([]channels.Requirement, error)
}

// Resolver probes every active requirement for one user. Probes are
// isolated: a slow, failing or panicking probe only affects its own channel.
type Resolver struct {
	source        RequirementSource
	prober        Prober
	probeTimeout  time.Duration
	maxConcurrent int
	logger        *slog.Logger
}

var _ UnsubscribedResolver = (*Resolver)(nil)

// NewResolver creates a resolver. A probeTimeout of 0 disables the
// per-probe deadline; maxConcurrent below 1 probes sequentially.
func NewResolver(source RequirementSource, prober Prober, probeTimeout time.Duration, maxConcurrent int, logger *slog.Logger) *Resolver {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Resolver{
		source:        source,
		prober:        prober,
		probeTimeout:  probeTimeout,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Resolve returns the requirements in force at now that userID has not
// joined, in the order the source returned them. Only a NotMember outcome
// keeps a requirement; Unknown drops it. Errors come from the source only.
func (r *Resolver) Resolve(ctx context.Context, userID int64, now time.Time) ([]channels.Requirement, error) {
	reqs, err := r.source.ActiveRequirements(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("load active requirements: %w", err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}

	outcomes := make([]membership.Outcome, len(reqs))

	// A plain group: one probe's failure must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)
	for i, req := range reqs {
		g.Go(func() error {
			outcomes[i] = r.probe(ctx, req, userID)
			return nil
		})
	}
	_ = g.Wait()

	var missing []channels.Requirement
	for i, req := range reqs {
		if outcomes[i] == membership.NotMember {
			missing = append(missing, req)
		}
	}
	return missing, nil
}

func (r *Resolver) probe(ctx context.Context, req channels.Requirement, userID int64) (outcome membership.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("membership probe panicked",
				"channel_id", req.ExternalID,
				"user_id", userID,
				"panic", p,
			)
			outcome = membership.Unknown
		}
	}()

	if r.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.probeTimeout)
		defer cancel()
	}

	outcome = r.prober.CheckMembership(ctx, req.ExternalID, userID)
	if outcome == membership.Unknown {
		r.logger.Warn("membership unknown, channel not enforced for this event",
			"channel_id", req.ExternalID,
			"channel", req.Name,
			"user_id", userID,
		)
	}
	return outcome
}
