package assets

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tileboardhq/tileboard/pkg/cache"
	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"github.com/tileboardhq/tileboard/pkg/quota"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeObjectStore struct {
	puts    []string
	deletes []string
}

func (f *fakeObjectStore) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, *params.Key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectStore) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func setupAssets(t *testing.T) (*Service, *fakeObjectStore, *quota.Gate) {
	t.Helper()

	mr := miniredis.RunT(t)
	cacheClient := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Asset{}))

	gate := quota.NewGate(quota.NewStore(cacheClient, 30*24*time.Hour), plans.NewRegistry(db), nil, true)
	store := &fakeObjectStore{}

	return NewService(db, store, "tileboard-assets", gate, nil), store, gate
}

func memberIdentity(userID string) identity.Identity {
	return identity.Identity{Kind: identity.KindMember, MemberID: userID, IP: "10.0.0.1"}
}

func guestIdentity(guestID string) identity.Identity {
	return identity.Identity{Kind: identity.KindGuest, GuestID: guestID, IP: "10.0.0.1"}
}

func TestUploadMember(t *testing.T) {
	svc, store, gate := setupAssets(t)
	ctx := context.Background()
	id := memberIdentity("u1")

	asset, err := svc.Upload(ctx, id, "d1", "report.pdf", "application/pdf", 12, strings.NewReader("pdf content!"))
	require.NoError(t, err)
	assert.Contains(t, asset.Key, "members/u1/")
	assert.Contains(t, asset.Key, "report.pdf")
	require.Len(t, store.puts, 1)

	list, err := svc.List(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	usage, err := gate.UsageFor(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, usage["assets"])
}

func TestUploadGuestHasNoDurableRow(t *testing.T) {
	svc, store, _ := setupAssets(t)
	ctx := context.Background()

	asset, err := svc.Upload(ctx, guestIdentity("g1"), "d1", "pic.png", "image/png", 3, strings.NewReader("png"))
	require.NoError(t, err)
	assert.Contains(t, asset.Key, "guests/g1/")
	require.Len(t, store.puts, 1)

	list, err := svc.List(ctx, "g1", "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUploadDeniedAtCeiling(t *testing.T) {
	svc, store, gate := setupAssets(t)
	ctx := context.Background()
	id := guestIdentity("g1")

	ceiling := plans.LimitFor(plans.PlanGuest, plans.KindAssets)
	require.NoError(t, gate.IncrementUsage(ctx, id, plans.KindAssets, ceiling))

	_, err := svc.Upload(ctx, id, "d1", "pic.png", "image/png", 3, strings.NewReader("png"))

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Contains(t, limitErr.Decision.Reason, "assets limit reached")
	assert.Empty(t, store.puts)
}

func TestDelete(t *testing.T) {
	svc, store, _ := setupAssets(t)
	ctx := context.Background()
	id := memberIdentity("u1")

	asset, err := svc.Upload(ctx, id, "d1", "report.pdf", "application/pdf", 3, strings.NewReader("pdf"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u1", asset.ID))
	assert.Equal(t, []string{asset.Key}, store.deletes)

	assert.ErrorIs(t, svc.Delete(ctx, "u1", asset.ID), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u2", "whatever"), ErrNotFound)
}
