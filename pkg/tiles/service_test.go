package tiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tileboardhq/tileboard/pkg/ai/llm"
	"github.com/tileboardhq/tileboard/pkg/cache"
	"github.com/tileboardhq/tileboard/pkg/gueststore"
	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"github.com/tileboardhq/tileboard/pkg/quota"
	"github.com/tileboardhq/tileboard/pkg/workspace"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeLLM struct {
	reply  string
	tokens int
	err    error
	calls  int
}

func (f *fakeLLM) Chat(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{
		Message:      f.reply,
		TokensUsed:   f.tokens,
		FinishReason: string(openai.FinishReasonStop),
	}, nil
}

func (f *fakeLLM) CountTokens(text string) int { return len(text) / 4 }

type fixture struct {
	svc    *Service
	db     *gorm.DB
	guests *gueststore.Store
	gate   *quota.Gate
	llm    *fakeLLM
	mr     *miniredis.Miniredis
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	cacheClient := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.Dashboard{},
		&models.Tile{},
		&models.Contact{},
		&models.Note{},
	))

	store := quota.NewStore(cacheClient, 30*24*time.Hour)
	gate := quota.NewGate(store, plans.NewRegistry(db), nil, true)
	guests := gueststore.New(time.Hour)
	content := workspace.NewService(db, nil)
	model := &fakeLLM{reply: "generated insight", tokens: 100}

	return &fixture{
		svc:    NewService(content, guests, gate, model, nil),
		db:     db,
		guests: guests,
		gate:   gate,
		llm:    model,
		mr:     mr,
	}
}

func memberIdentity(userID string) identity.Identity {
	return identity.Identity{Kind: identity.KindMember, MemberID: userID, IP: "10.0.0.1"}
}

func guestIdentity(guestID string) identity.Identity {
	return identity.Identity{Kind: identity.KindGuest, GuestID: guestID, IP: "10.0.0.1"}
}

func seedMemberDashboard(t *testing.T, f *fixture, userID string) *models.Dashboard {
	t.Helper()
	content := workspace.NewService(f.db, nil)
	w, err := content.CreateWorkspace(context.Background(), userID, models.CreateWorkspaceRequest{Name: "Acme"})
	require.NoError(t, err)
	d, err := content.CreateDashboard(context.Background(), userID, models.CreateDashboardRequest{WorkspaceID: w.ID, Name: "Main"})
	require.NoError(t, err)
	return d
}

func TestGenerateTileForMember(t *testing.T) {
	f := setupFixture(t)
	id := memberIdentity("u1")
	d := seedMemberDashboard(t, f, "u1")

	result, err := f.svc.GenerateTile(context.Background(), id, models.GenerateTileRequest{
		DashboardID: d.ID,
		Prompt:      "Summarize Q3 revenue drivers",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Tile)
	assert.Nil(t, result.GuestTile)
	assert.Equal(t, "generated insight", result.Tile.Content)
	assert.Equal(t, "Summarize Q3 revenue drivers", result.Tile.Title)
	assert.Equal(t, 100, result.TokensUsed)

	usage, err := f.gate.UsageFor(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, usage["tiles"])
	assert.EqualValues(t, 100, usage["tokens_used"])
}

func TestGenerateTileForGuest(t *testing.T) {
	f := setupFixture(t)
	id := guestIdentity("g1")

	f.guests.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, f.guests.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))

	result, err := f.svc.GenerateTile(context.Background(), id, models.GenerateTileRequest{
		DashboardID: "d1",
		Prompt:      "Summarize the market",
	})
	require.NoError(t, err)
	require.NotNil(t, result.GuestTile)
	assert.Nil(t, result.Tile)

	// the tile landed in the guest store
	tile, ok := f.guests.FindTile("g1", result.GuestTile.ID)
	require.True(t, ok)
	assert.Equal(t, "generated insight", tile.Content)

	// both guest counters moved
	usage, err := f.gate.UsageFor(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, usage["tiles"])
}

func TestGenerateTileDeniedAtCeiling(t *testing.T) {
	f := setupFixture(t)
	id := guestIdentity("g1")
	ctx := context.Background()

	ceiling := plans.LimitFor(plans.PlanGuest, plans.KindTiles)
	require.NoError(t, f.gate.IncrementUsage(ctx, id, plans.KindTiles, ceiling))

	f.guests.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, f.guests.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))

	_, err := f.svc.GenerateTile(ctx, id, models.GenerateTileRequest{DashboardID: "d1", Prompt: "one more"})

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Contains(t, limitErr.Decision.Reason, "tiles limit reached")
	assert.Equal(t, 0, f.llm.calls)
}

func TestGenerateTileFailedModelCostsNothing(t *testing.T) {
	f := setupFixture(t)
	id := memberIdentity("u1")
	d := seedMemberDashboard(t, f, "u1")
	f.llm.err = errors.New("upstream down")

	_, err := f.svc.GenerateTile(context.Background(), id, models.GenerateTileRequest{
		DashboardID: d.ID,
		Prompt:      "Summarize",
	})
	require.Error(t, err)

	usage, err := f.gate.UsageFor(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 0, usage["tiles"])
	assert.EqualValues(t, 0, usage["tokens_used"])
}

func TestRegenerateTile(t *testing.T) {
	f := setupFixture(t)
	id := memberIdentity("u1")
	d := seedMemberDashboard(t, f, "u1")
	ctx := context.Background()

	first, err := f.svc.GenerateTile(ctx, id, models.GenerateTileRequest{DashboardID: d.ID, Prompt: "Summarize"})
	require.NoError(t, err)

	f.llm.reply = "fresh take"
	result, err := f.svc.RegenerateTile(ctx, id, first.Tile.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh take", result.Tile.Content)

	usage, err := f.gate.UsageFor(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, usage["regenerations"])
}

func TestRegenerateMissingTile(t *testing.T) {
	f := setupFixture(t)

	_, err := f.svc.RegenerateTile(context.Background(), memberIdentity("u1"), "missing")
	assert.ErrorIs(t, err, ErrTileNotFound)
}

func TestRegenerateGuestTile(t *testing.T) {
	f := setupFixture(t)
	id := guestIdentity("g1")
	ctx := context.Background()

	f.guests.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, f.guests.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, f.guests.AddTile("g1", "d1", models.GuestTile{ID: "t1", Title: "Summary", Content: "old", Prompt: "Summarize"}))

	f.llm.reply = "fresh take"
	result, err := f.svc.RegenerateTile(ctx, id, "t1")
	require.NoError(t, err)
	require.NotNil(t, result.GuestTile)
	assert.Equal(t, "t1", result.GuestTile.ID)
	assert.Equal(t, "fresh take", result.GuestTile.Content)

	// a tile that vanished before the rewrite is a not-found, never an
	// empty tile reported as success
	require.NoError(t, f.guests.DeleteTile("g1", "t1"))
	_, err = f.svc.RegenerateTile(ctx, id, "t1")
	assert.ErrorIs(t, err, ErrTileNotFound)
}

func TestTileChatConsumesQuotaAtomically(t *testing.T) {
	f := setupFixture(t)
	id := guestIdentity("g1")
	ctx := context.Background()

	f.guests.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, f.guests.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, f.guests.AddTile("g1", "d1", models.GuestTile{ID: "t1", Title: "Summary", Content: "text"}))

	resp, err := f.svc.TileChat(ctx, id, models.TileChatRequest{TileID: "t1", Message: "what does this mean?"})
	require.NoError(t, err)
	assert.Equal(t, "generated insight", resp.Reply)

	usage, err := f.gate.UsageFor(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, usage["tile_chats"])
}

func TestTileChatDeniedAtCeiling(t *testing.T) {
	f := setupFixture(t)
	id := guestIdentity("g1")
	ctx := context.Background()

	f.guests.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, f.guests.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, f.guests.AddTile("g1", "d1", models.GuestTile{ID: "t1", Title: "Summary", Content: "text"}))

	ceiling := plans.LimitFor(plans.PlanGuest, plans.KindTileChats)
	require.NoError(t, f.gate.IncrementUsage(ctx, id, plans.KindTileChats, ceiling))

	_, err := f.svc.TileChat(ctx, id, models.TileChatRequest{TileID: "t1", Message: "one more"})

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.EqualValues(t, ceiling, limitErr.Decision.Maximum)
	assert.Equal(t, 0, f.llm.calls)
}

func TestTileChatMissingTile(t *testing.T) {
	f := setupFixture(t)

	_, err := f.svc.TileChat(context.Background(), guestIdentity("g1"), models.TileChatRequest{TileID: "nope", Message: "hi"})
	assert.ErrorIs(t, err, ErrTileNotFound)
	assert.Equal(t, 0, f.llm.calls)
}

func TestContactChat(t *testing.T) {
	f := setupFixture(t)
	id := guestIdentity("g1")
	ctx := context.Background()

	f.guests.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, f.guests.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, f.guests.AddContact("g1", "d1", models.GuestContact{ID: "c1", Name: "Ada", Company: "Analytical Engines"}))

	resp, err := f.svc.ContactChat(ctx, id, "c1", "who is this?")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Reply)

	usage, err := f.gate.UsageFor(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, usage["contact_chats"])

	_, err = f.svc.ContactChat(ctx, id, "missing", "hi")
	assert.ErrorIs(t, err, ErrContactNotFound)
}
