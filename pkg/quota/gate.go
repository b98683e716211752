package quota

import (
	"context"
	"fmt"

	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/plans"
)

// Decision is the outcome of a quota check. A denial is a normal,
// expected outcome (429 at the boundary), not an error.
type Decision struct {
	Allowed   bool
	Reason    string
	Used      int64
	Requested int64
	Maximum   int64
}

// Gate is the usage enforcement policy layer. Check and increment are
// deliberately separate calls: the check runs before an expensive
// downstream action, the increment only after that action succeeds.
// Concurrent requests from one subject can therefore transiently
// overshoot; ConsumeWithCeiling is the atomic alternative.
type Gate struct {
	store    *Store
	registry *plans.Registry
	logger   logger.Logger
	failOpen bool
}

// NewGate creates an enforcement gate. failOpen controls the policy
// when the counter store is unreachable.
func NewGate(store *Store, registry *plans.Registry, log logger.Logger, failOpen bool) *Gate {
	if log == nil {
		log = logger.Default()
	}
	return &Gate{
		store:    store,
		registry: registry,
		logger:   log,
		failOpen: failOpen,
	}
}

// CheckLimit checks whether the subject may perform one more action of
// the given kind
func (g *Gate) CheckLimit(ctx context.Context, id identity.Identity, kind plans.QuotaKind) (Decision, error) {
	return g.CheckLimitN(ctx, id, kind, 1)
}

// CheckLimitN checks a bulk-sized increment in one call
func (g *Gate) CheckLimitN(ctx context.Context, id identity.Identity, kind plans.QuotaKind, amount int64) (Decision, error) {
	if !id.IsMember() {
		return g.CheckGuestLimit(ctx, id.GuestID, id.IP, kind, amount)
	}

	plan := g.registry.PlanFor(ctx, id)
	ceiling := plans.LimitFor(plan, kind)

	used, err := g.store.Get(ctx, MemberKey(id.MemberID, kind))
	if err != nil {
		return g.storeFailure(id.MemberID, kind, amount, err)
	}

	return g.decide(used, amount, ceiling, kind), nil
}

// CheckGuestLimit checks a guest action against the dual cookie/IP
// counters. Effective usage is the max of the two, so discarding the
// cookie alone does not reset usage.
func (g *Gate) CheckGuestLimit(ctx context.Context, guestID, ip string, kind plans.QuotaKind, amount int64) (Decision, error) {
	ceiling := plans.LimitFor(plans.PlanGuest, kind)

	cookieUsed, err := g.store.Get(ctx, GuestKey(guestID, kind))
	if err != nil {
		return g.storeFailure(guestID, kind, amount, err)
	}

	ipUsed, err := g.store.Get(ctx, GuestIPKey(ip, kind))
	if err != nil {
		return g.storeFailure(guestID, kind, amount, err)
	}

	used := cookieUsed
	if ipUsed > used {
		used = ipUsed
	}

	return g.decide(used, amount, ceiling, kind), nil
}

// IncrementUsage records completed usage. For guests both counters are
// bumped and their retention windows refreshed.
func (g *Gate) IncrementUsage(ctx context.Context, id identity.Identity, kind plans.QuotaKind, amount int64) error {
	if id.IsMember() {
		if _, err := g.store.Increment(ctx, MemberKey(id.MemberID, kind), amount); err != nil {
			g.logger.Error("failed to increment member usage",
				"subject", id.MemberID, "kind", string(kind), "error", err)
			return err
		}
		return nil
	}

	cookieKey := GuestKey(id.GuestID, kind)
	ipKey := GuestIPKey(id.IP, kind)

	if _, err := g.store.Increment(ctx, cookieKey, amount); err != nil {
		g.logger.Error("failed to increment guest usage",
			"subject", id.GuestID, "kind", string(kind), "error", err)
		return err
	}
	if _, err := g.store.Increment(ctx, ipKey, amount); err != nil {
		g.logger.Error("failed to increment guest IP usage",
			"ip", id.IP, "kind", string(kind), "error", err)
		return err
	}

	if err := g.store.Touch(ctx, cookieKey); err != nil {
		return err
	}
	return g.store.Touch(ctx, ipKey)
}

// ConsumeWithCeiling runs check and increment as one atomic
// conditional increment in the counter store. On denial no counter is
// left changed.
func (g *Gate) ConsumeWithCeiling(ctx context.Context, id identity.Identity, kind plans.QuotaKind, amount int64) (Decision, error) {
	plan := g.registry.PlanFor(ctx, id)
	ceiling := plans.LimitFor(plan, kind)

	if id.IsMember() {
		allowed, value, err := g.store.IncrementWithCeiling(ctx, MemberKey(id.MemberID, kind), amount, ceiling)
		if err != nil {
			return g.storeFailure(id.MemberID, kind, amount, err)
		}
		if !allowed {
			return g.deny(value, amount, ceiling, kind), nil
		}
		return Decision{Allowed: true, Used: value, Requested: amount, Maximum: ceiling}, nil
	}

	cookieKey := GuestKey(id.GuestID, kind)
	ipKey := GuestIPKey(id.IP, kind)

	allowed, cookieVal, err := g.store.IncrementWithCeiling(ctx, cookieKey, amount, ceiling)
	if err != nil {
		return g.storeFailure(id.GuestID, kind, amount, err)
	}
	if !allowed {
		return g.deny(cookieVal, amount, ceiling, kind), nil
	}

	allowed, ipVal, err := g.store.IncrementWithCeiling(ctx, ipKey, amount, ceiling)
	if err != nil {
		return g.storeFailure(id.GuestID, kind, amount, err)
	}
	if !allowed {
		// Undo the cookie-counter reservation so a denial leaves no trace
		if _, derr := g.store.Increment(ctx, cookieKey, -amount); derr != nil {
			g.logger.Error("failed to roll back guest reservation",
				"subject", id.GuestID, "kind", string(kind), "error", derr)
		}
		return g.deny(ipVal, amount, ceiling, kind), nil
	}

	_ = g.store.Touch(ctx, cookieKey)
	_ = g.store.Touch(ctx, ipKey)

	used := cookieVal
	if ipVal > used {
		used = ipVal
	}
	return Decision{Allowed: true, Used: used, Requested: amount, Maximum: ceiling}, nil
}

// UsageFor reports current usage across all quota kinds for a subject
func (g *Gate) UsageFor(ctx context.Context, id identity.Identity) (map[string]int64, error) {
	usage := make(map[string]int64, len(plans.AllKinds))
	for _, kind := range plans.AllKinds {
		var used int64
		var err error
		if id.IsMember() {
			used, err = g.store.Get(ctx, MemberKey(id.MemberID, kind))
		} else {
			var cookieUsed, ipUsed int64
			cookieUsed, err = g.store.Get(ctx, GuestKey(id.GuestID, kind))
			if err == nil {
				ipUsed, err = g.store.Get(ctx, GuestIPKey(id.IP, kind))
			}
			used = cookieUsed
			if ipUsed > used {
				used = ipUsed
			}
		}
		if err != nil {
			return nil, err
		}
		usage[string(kind)] = used
	}
	return usage, nil
}

func (g *Gate) decide(used, amount, ceiling int64, kind plans.QuotaKind) Decision {
	if used+amount > ceiling {
		return g.deny(used, amount, ceiling, kind)
	}
	return Decision{Allowed: true, Used: used, Requested: amount, Maximum: ceiling}
}

func (g *Gate) deny(used, amount, ceiling int64, kind plans.QuotaKind) Decision {
	return Decision{
		Allowed:   false,
		Reason:    fmt.Sprintf("%s limit reached: used %d, requested %d, maximum %d", kind, used, amount, ceiling),
		Used:      used,
		Requested: amount,
		Maximum:   ceiling,
	}
}

// storeFailure applies the infrastructure-failure policy: log the
// incident and either allow the action through or surface the error
func (g *Gate) storeFailure(subject string, kind plans.QuotaKind, amount int64, err error) (Decision, error) {
	g.logger.Error("quota store unavailable",
		"subject", subject, "kind", string(kind), "fail_open", g.failOpen, "error", err)

	if g.failOpen {
		return Decision{Allowed: true, Requested: amount, Reason: "quota store unavailable"}, nil
	}
	return Decision{Allowed: false, Requested: amount, Reason: "quota temporarily unavailable"}, err
}
