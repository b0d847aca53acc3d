package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// ProfileResolver resolves the durable or inferred profile of a subject.
type ProfileResolver interface {
	Resolve(ctx context.Context, subjectID uuid.UUID, hint Role) (*Profile, error)
}

// RoleResolver decides which profile a subject has:
//  1. a stored profile always wins
//  2. otherwise a session role hint is trusted, without writing
//  3. otherwise the developer and company tables are probed, developer first,
//     and an inferred role is written back with an idempotent upsert
//
// A nil profile with a nil error means the role could not be determined.
type RoleResolver struct {
	store    RoleStore
	logger   Logger
	activity ActivitySink
	backoff  func() retry.Backoff
	now      func() time.Time
}

// RoleResolverOption customizes a RoleResolver.
type RoleResolverOption func(*RoleResolver)

// WithRoleResolverLogger overrides the logger used for upsert failures.
func WithRoleResolverLogger(logger Logger) RoleResolverOption {
	return func(r *RoleResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRoleResolverActivitySink sets the sink notified about inferred roles.
func WithRoleResolverActivitySink(sink ActivitySink) RoleResolverOption {
	return func(r *RoleResolver) {
		r.activity = normalizeActivitySink(sink)
	}
}

// WithUpsertBackoff sets the retry policy for the self-healing upsert. The
// factory is called once per upsert since backoffs are stateful.
func WithUpsertBackoff(factory func() retry.Backoff) RoleResolverOption {
	return func(r *RoleResolver) {
		if factory != nil {
			r.backoff = factory
		}
	}
}

// WithRoleResolverClock injects a custom clock (useful for tests).
func WithRoleResolverClock(clock func() time.Time) RoleResolverOption {
	return func(r *RoleResolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewRoleResolver returns a resolver backed by store.
func NewRoleResolver(store RoleStore, opts ...RoleResolverOption) *RoleResolver {
	r := &RoleResolver{
		store:    store,
		logger:   defLogger{},
		activity: noopActivitySink{},
		backoff:  defaultUpsertBackoff,
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func defaultUpsertBackoff() retry.Backoff {
	return retry.WithMaxRetries(2, retry.NewExponential(50*time.Millisecond))
}

// Resolve implements ProfileResolver.
func (r *RoleResolver) Resolve(ctx context.Context, subjectID uuid.UUID, hint Role) (*Profile, error) {
	if subjectID == uuid.Nil {
		return nil, goerrors.New("subject id is required", goerrors.CategoryBadInput)
	}

	existing, err := r.store.FindProfile(ctx, subjectID)
	if err != nil {
		recordRoleResolution(RoleOutcomeError)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch profile")
	}

	if existing != nil {
		profile := *existing
		profile.Source = ProfileSourceDurable
		recordRoleResolution(RoleOutcomeDurable)
		return &profile, nil
	}

	if hint.IsValid() {
		recordRoleResolution(RoleOutcomeHint)
		return &Profile{
			ID:     subjectID,
			Role:   hint,
			Source: ProfileSourceHint,
		}, nil
	}

	role, err := r.infer(ctx, subjectID)
	if err != nil {
		recordRoleResolution(RoleOutcomeError)
		return nil, err
	}

	if role == "" {
		r.logger.Info("no role could be inferred for subject %s", subjectID)
		recordRoleResolution(RoleOutcomeUnresolved)
		return nil, nil
	}

	profile := &Profile{
		ID:     subjectID,
		Role:   role,
		Source: ProfileSourceInferred,
	}

	r.ensureProfile(ctx, profile)
	recordRoleResolution(RoleOutcomeInferred)

	recordActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventRoleInferred,
		SubjectID: subjectID.String(),
		Metadata: map[string]any{
			"role": string(role),
		},
		OccurredAt: r.now(),
	})

	return profile, nil
}

func (r *RoleResolver) infer(ctx context.Context, subjectID uuid.UUID) (Role, error) {
	var isDeveloper, isCompany bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		isDeveloper, err = r.store.HasDeveloper(gctx, subjectID)
		return err
	})
	g.Go(func() error {
		var err error
		isCompany, err = r.store.HasCompany(gctx, subjectID)
		return err
	})

	if err := g.Wait(); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to probe role tables")
	}

	// probe order decides a double match
	switch {
	case isDeveloper:
		if isCompany {
			r.logger.Warn("subject %s found in both developer and company tables, using developer", subjectID)
		}
		return RoleDeveloper, nil
	case isCompany:
		return RoleCompany, nil
	default:
		return "", nil
	}
}

func (r *RoleResolver) ensureProfile(ctx context.Context, profile *Profile) {
	record := &Profile{
		ID:   profile.ID,
		Role: profile.Role,
	}

	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		if err := r.store.UpsertProfile(ctx, record); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil {
		r.logger.Warn("upsert profile for %s failed, continuing with inferred role %s: %v", profile.ID, profile.Role, err)
	}
}
