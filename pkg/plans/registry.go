// Package plans holds the immutable plan reference data and resolves
// which plan a subject currently has.
package plans

import (
	"context"
	"errors"

	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/models"
	"gorm.io/gorm"
)

// Plan identifiers
const (
	PlanGuest    = "guest"
	PlanMember   = "member"
	PlanBusiness = "business"
)

// QuotaKind is one category of countable action or resource
type QuotaKind string

const (
	KindCompanies     QuotaKind = "companies"
	KindContacts      QuotaKind = "contacts"
	KindNotes         QuotaKind = "notes"
	KindTiles         QuotaKind = "tiles"
	KindTileChats     QuotaKind = "tile_chats"
	KindContactChats  QuotaKind = "contact_chats"
	KindRegenerations QuotaKind = "regenerations"
	KindAssets        QuotaKind = "assets"
	KindTokens        QuotaKind = "tokens_used"
)

// AllKinds lists every quota kind, in usage-report order
var AllKinds = []QuotaKind{
	KindCompanies,
	KindContacts,
	KindNotes,
	KindTiles,
	KindTileChats,
	KindContactChats,
	KindRegenerations,
	KindAssets,
	KindTokens,
}

// planLimits is seeded once; runtime access is read-only
var planLimits = map[string]models.PlanLimits{
	PlanGuest: {
		CompaniesCount:     2,
		ContactsCount:      10,
		NotesCount:         10,
		TilesCount:         10,
		TileChatsCount:     20,
		ContactChatsCount:  10,
		RegenerationsCount: 5,
		AssetsCount:        5,
		TokensUsed:         50_000,
	},
	PlanMember: {
		CompaniesCount:     10,
		ContactsCount:      500,
		NotesCount:         500,
		TilesCount:         200,
		TileChatsCount:     500,
		ContactChatsCount:  300,
		RegenerationsCount: 100,
		AssetsCount:        100,
		TokensUsed:         2_000_000,
	},
	PlanBusiness: {
		CompaniesCount:     50,
		ContactsCount:      5_000,
		NotesCount:         5_000,
		TilesCount:         1_000,
		TileChatsCount:     5_000,
		ContactChatsCount:  3_000,
		RegenerationsCount: 1_000,
		AssetsCount:        1_000,
		TokensUsed:         20_000_000,
	},
}

// LimitsFor returns the quota ceilings for a plan. Unknown plans get
// the guest ceilings, the safest floor.
func LimitsFor(plan string) models.PlanLimits {
	if limits, ok := planLimits[plan]; ok {
		return limits
	}
	return planLimits[PlanGuest]
}

// LimitFor returns one ceiling from a plan's limit set
func LimitFor(plan string, kind QuotaKind) int64 {
	limits := LimitsFor(plan)
	switch kind {
	case KindCompanies:
		return limits.CompaniesCount
	case KindContacts:
		return limits.ContactsCount
	case KindNotes:
		return limits.NotesCount
	case KindTiles:
		return limits.TilesCount
	case KindTileChats:
		return limits.TileChatsCount
	case KindContactChats:
		return limits.ContactChatsCount
	case KindRegenerations:
		return limits.RegenerationsCount
	case KindAssets:
		return limits.AssetsCount
	case KindTokens:
		return limits.TokensUsed
	default:
		return 0
	}
}

// Registry resolves plan assignments for subjects
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a plan registry backed by the account store
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// PlanFor resolves the active plan of a subject. Guests never touch the
// durable store; members with no explicit assignment are at least on
// the base member plan, never guest-tier.
func (r *Registry) PlanFor(ctx context.Context, id identity.Identity) string {
	if !id.IsMember() {
		return PlanGuest
	}

	var user models.User
	err := r.db.WithContext(ctx).Select("plan").Where("id = ?", id.MemberID).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			// Treat a malformed or unreachable plan store as base membership
			return PlanMember
		}
		return PlanMember
	}

	if user.Plan == "" || user.Plan == PlanGuest {
		return PlanMember
	}
	return user.Plan
}

// LimitsFor returns the quota ceilings for a plan
func (r *Registry) LimitsFor(plan string) models.PlanLimits {
	return LimitsFor(plan)
}
