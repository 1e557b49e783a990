package vote

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadly/backend/internal/apperrors"
	"github.com/threadly/backend/internal/cache"
	"github.com/threadly/backend/internal/models"
)

type testEngine struct {
	engine   *Engine
	ledger   *MemoryLedger
	posts    *MemoryScores
	comments *MemoryScores
	cache    *cache.Store
	clock    *clockwork.FakeClock
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	clock := clockwork.NewFakeClock()
	ledger := NewMemoryLedger()
	posts := NewMemoryScores(KindPost)
	comments := NewMemoryScores(KindComment)
	cacheStore := cache.New(clock)
	return &testEngine{
		engine:   NewEngine(ledger, posts, comments, cacheStore),
		ledger:   ledger,
		posts:    posts,
		comments: comments,
		cache:    cacheStore,
		clock:    clock,
	}
}

func TestCastVote_FirstVoteCreates(t *testing.T) {
	te := newTestEngine(t)
	te.posts.Seed(1, 0)

	result, err := te.engine.CastVote(context.Background(), 10, 1, KindPost, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 1, result.UserVote)
	assert.Equal(t, 1, te.ledger.Len())

	stored, err := te.ledger.Find(context.Background(), 10, 1, KindPost)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.Direction)
	assert.Equal(t, string(KindPost), stored.TargetKind)
}

func TestCastVote_FirstDownvote(t *testing.T) {
	te := newTestEngine(t)
	te.posts.Seed(1, 5)

	result, err := te.engine.CastVote(context.Background(), 10, 1, KindPost, -1)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Score)
	assert.Equal(t, -1, result.UserVote)
}

func TestCastVote_IdempotentPair(t *testing.T) {
	// Same direction twice returns to no-vote with net score delta 0.
	te := newTestEngine(t)
	te.posts.Seed(1, 7)

	first, err := te.engine.CastVote(context.Background(), 10, 1, KindPost, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, first.Score)

	second, err := te.engine.CastVote(context.Background(), 10, 1, KindPost, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, second.Score)
	assert.Equal(t, 0, second.UserVote)
	assert.Equal(t, 0, te.ledger.Len(), "Ledger must hold no row after a toggle-off")
}

func TestCastVote_TwoCycleNotIdempotent(t *testing.T) {
	// A third identical call reproduces the first call's transition: the
	// operation is a 2-cycle, not idempotent.
	te := newTestEngine(t)
	te.posts.Seed(1, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := te.engine.CastVote(ctx, 10, 1, KindPost, 1)
		require.NoError(t, err)
	}

	score, _ := te.posts.Score(1)
	assert.Equal(t, 1, score)
	assert.Equal(t, 1, te.ledger.Len())
}

func TestCastVote_Flip(t *testing.T) {
	tests := []struct {
		name      string
		first     int
		second    int
		wantDelta int
	}{
		{name: "upvote to downvote", first: 1, second: -1, wantDelta: -2},
		{name: "downvote to upvote", first: -1, second: 1, wantDelta: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t)
			te.posts.Seed(1, 10)
			ctx := context.Background()

			first, err := te.engine.CastVote(ctx, 10, 1, KindPost, tt.first)
			require.NoError(t, err)

			second, err := te.engine.CastVote(ctx, 10, 1, KindPost, tt.second)
			require.NoError(t, err)

			assert.Equal(t, tt.wantDelta, second.Score-first.Score)
			assert.Equal(t, tt.second, second.UserVote)
			assert.Equal(t, 1, te.ledger.Len(), "Flip edits the row in place")
		})
	}
}

func TestCastVote_TwoVoterSum(t *testing.T) {
	directions := []int{1, -1}
	for _, d1 := range directions {
		for _, d2 := range directions {
			te := newTestEngine(t)
			te.posts.Seed(1, 0)
			ctx := context.Background()

			_, err := te.engine.CastVote(ctx, 100, 1, KindPost, d1)
			require.NoError(t, err)
			result, err := te.engine.CastVote(ctx, 200, 1, KindPost, d2)
			require.NoError(t, err)

			assert.Equal(t, d1+d2, result.Score)
			assert.Equal(t, 2, te.ledger.Len())
		}
	}
}

func TestCastVote_ThreeVoters(t *testing.T) {
	// A(+1), B(+1), C(-1) on a fresh post: final score 1, three rows.
	te := newTestEngine(t)
	te.posts.Seed(1, 0)
	ctx := context.Background()

	_, err := te.engine.CastVote(ctx, 1, 1, KindPost, 1)
	require.NoError(t, err)
	_, err = te.engine.CastVote(ctx, 2, 1, KindPost, 1)
	require.NoError(t, err)
	result, err := te.engine.CastVote(ctx, 3, 1, KindPost, -1)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 3, te.ledger.Len())

	for voter, want := range map[int]int{1: 1, 2: 1, 3: -1} {
		stored, err := te.ledger.Find(ctx, voter, 1, KindPost)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, want, stored.Direction)
	}
}

func TestCastVote_TargetNotFound(t *testing.T) {
	te := newTestEngine(t)

	_, err := te.engine.CastVote(context.Background(), 10, 99, KindPost, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	// The ledger mutation is not rolled back on this path; the stores are
	// allowed to diverge and callers are told so.
	assert.Equal(t, 1, te.ledger.Len())
}

func TestCastVote_InvalidDirection(t *testing.T) {
	te := newTestEngine(t)
	te.posts.Seed(1, 0)

	for _, direction := range []int{0, 2, -2, 7} {
		_, err := te.engine.CastVote(context.Background(), 10, 1, KindPost, direction)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	}
	assert.Equal(t, 0, te.ledger.Len())
}

func TestCastVote_UnknownKind(t *testing.T) {
	te := newTestEngine(t)

	_, err := te.engine.CastVote(context.Background(), 10, 1, TargetKind("story"), 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

// racedLedger hides an existing row from the first Find, simulating a
// concurrent insert landing between the engine's read and its create.
type racedLedger struct {
	*MemoryLedger
	hidden bool
}

func (l *racedLedger) Find(ctx context.Context, voterID, targetID int, kind TargetKind) (*models.Vote, error) {
	if l.hidden {
		l.hidden = false
		return nil, nil
	}
	return l.MemoryLedger.Find(ctx, voterID, targetID, kind)
}

func TestCastVote_ConflictOnRacedCreate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ledger := &racedLedger{MemoryLedger: NewMemoryLedger(), hidden: true}
	posts := NewMemoryScores(KindPost)
	posts.Seed(1, 1)
	engine := NewEngine(ledger, posts, NewMemoryScores(KindComment), cache.New(clock))
	ctx := context.Background()

	// The "concurrent" vote already exists.
	_, err := ledger.MemoryLedger.Create(ctx, 10, 1, KindPost, 1)
	require.NoError(t, err)

	_, err = engine.CastVote(ctx, 10, 1, KindPost, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// Retrying sees the existing row and takes the toggle branch instead.
	result, err := engine.CastVote(ctx, 10, 1, KindPost, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.UserVote)
	assert.Equal(t, 0, ledger.Len())
}

func TestCastVote_InvalidatesUserVoteCache(t *testing.T) {
	te := newTestEngine(t)
	te.posts.Seed(1, 0)
	ctx := context.Background()

	// Populate the cache through the read path first.
	_, err := te.engine.GetUserVote(ctx, 10, 1, KindPost)
	require.NoError(t, err)
	_, hit := te.cache.Get(UserVoteKey(10, 1, KindPost))
	require.True(t, hit)

	_, err = te.engine.CastVote(ctx, 10, 1, KindPost, 1)
	require.NoError(t, err)

	_, hit = te.cache.Get(UserVoteKey(10, 1, KindPost))
	assert.False(t, hit, "Cast must invalidate the cached user-vote entry")
}

func TestCastVote_PostInvalidatesListings(t *testing.T) {
	te := newTestEngine(t)
	te.posts.Seed(1, 0)

	listingKey := cache.GenerateKey(PostListPrefix, map[string]any{"page": 1})
	te.cache.Set(listingKey, "listing", time.Minute)

	_, err := te.engine.CastVote(context.Background(), 10, 1, KindPost, 1)
	require.NoError(t, err)

	_, hit := te.cache.Get(listingKey)
	assert.False(t, hit, "Post votes must blow away cached listings")
}

func TestCastVote_CommentLeavesListingsAlone(t *testing.T) {
	te := newTestEngine(t)
	te.comments.Seed(5, 0)

	listingKey := cache.GenerateKey(PostListPrefix, map[string]any{"page": 1})
	te.cache.Set(listingKey, "listing", time.Minute)

	_, err := te.engine.CastVote(context.Background(), 10, 5, KindComment, 1)
	require.NoError(t, err)

	_, hit := te.cache.Get(listingKey)
	assert.True(t, hit)
}

// countingLedger counts reads so tests can prove the cache answered.
type countingLedger struct {
	*MemoryLedger
	finds int
}

func (l *countingLedger) Find(ctx context.Context, voterID, targetID int, kind TargetKind) (*models.Vote, error) {
	l.finds++
	return l.MemoryLedger.Find(ctx, voterID, targetID, kind)
}

func TestGetUserVote_ServedFromCache(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ledger := &countingLedger{MemoryLedger: NewMemoryLedger()}
	posts := NewMemoryScores(KindPost)
	posts.Seed(1, 0)
	engine := NewEngine(ledger, posts, NewMemoryScores(KindComment), cache.New(clock))
	ctx := context.Background()

	_, err := ledger.MemoryLedger.Create(ctx, 10, 1, KindPost, -1)
	require.NoError(t, err)

	direction, err := engine.GetUserVote(ctx, 10, 1, KindPost)
	require.NoError(t, err)
	assert.Equal(t, -1, direction)
	assert.Equal(t, 1, ledger.finds)

	direction, err = engine.GetUserVote(ctx, 10, 1, KindPost)
	require.NoError(t, err)
	assert.Equal(t, -1, direction)
	assert.Equal(t, 1, ledger.finds, "Second read must come from the cache")
}

func TestGetUserVote_CachesZeroExplicitly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ledger := &countingLedger{MemoryLedger: NewMemoryLedger()}
	engine := NewEngine(ledger, NewMemoryScores(KindPost), NewMemoryScores(KindComment), cache.New(clock))
	ctx := context.Background()

	direction, err := engine.GetUserVote(ctx, 10, 1, KindPost)
	require.NoError(t, err)
	assert.Equal(t, 0, direction)

	direction, err = engine.GetUserVote(ctx, 10, 1, KindPost)
	require.NoError(t, err)
	assert.Equal(t, 0, direction)
	assert.Equal(t, 1, ledger.finds, "The zero must be cached, not re-read")
}

func TestGetUserVote_CacheExpiresAfterTenMinutes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ledger := &countingLedger{MemoryLedger: NewMemoryLedger()}
	engine := NewEngine(ledger, NewMemoryScores(KindPost), NewMemoryScores(KindComment), cache.New(clock))
	ctx := context.Background()

	_, err := engine.GetUserVote(ctx, 10, 1, KindPost)
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)

	_, err = engine.GetUserVote(ctx, 10, 1, KindPost)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.finds, "Expired entry forces a fresh ledger read")
}

func TestVoteOnPostAndComment(t *testing.T) {
	te := newTestEngine(t)
	te.posts.Seed(1, 0)
	te.comments.Seed(5, 0)
	ctx := context.Background()

	postResult, err := te.engine.VoteOnPost(ctx, 10, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, postResult.Score)
	assert.Equal(t, 1, postResult.UserVote)

	commentResult, err := te.engine.VoteOnComment(ctx, 10, 5, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, commentResult.Score)
	assert.Equal(t, -1, commentResult.UserVote)

	assert.Equal(t, 2, te.ledger.Len())
}

func TestCastVote_SameIDAcrossKinds(t *testing.T) {
	// Post ids and comment ids come from separate sequences, so the same
	// numeric id names two different targets. Voting on both must yield two
	// independent votes, never a toggle or flip of the other kind's row.
	te := newTestEngine(t)
	te.posts.Seed(1, 0)
	te.comments.Seed(1, 0)
	ctx := context.Background()

	postResult, err := te.engine.CastVote(ctx, 10, 1, KindPost, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, postResult.Score)
	assert.Equal(t, 1, postResult.UserVote)

	commentResult, err := te.engine.CastVote(ctx, 10, 1, KindComment, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, commentResult.Score)
	assert.Equal(t, 1, commentResult.UserVote)

	assert.Equal(t, 2, te.ledger.Len(), "One row per kind must survive")

	postScore, _ := te.posts.Score(1)
	commentScore, _ := te.comments.Score(1)
	assert.Equal(t, 1, postScore)
	assert.Equal(t, 1, commentScore)

	for _, kind := range []TargetKind{KindPost, KindComment} {
		direction, err := te.engine.GetUserVote(ctx, 10, 1, kind)
		require.NoError(t, err)
		assert.Equal(t, 1, direction)
	}
}
