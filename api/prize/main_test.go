package prize_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/lilzahs/gimme-idea/api/feed"
	"github.com/lilzahs/gimme-idea/api/prize"
	apitesting "github.com/lilzahs/gimme-idea/api/testing"
	"github.com/lilzahs/gimme-idea/api/wallet"
	gimmetesting "github.com/lilzahs/gimme-idea/utils/pkg/testing"
)

var testDB *apitesting.DB

func TestMain(m *testing.M) {
	log := gimmetesting.NewLogger()

	var err error
	testDB, err = apitesting.NewDB(context.Background(), log, nil)
	if err != nil {
		log.Error("failed to start PostgreSQL container", "error", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

type env struct {
	pool    *pgxpool.Pool
	wallets *wallet.Store
	prizes  *prize.Store
	feed    *feed.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := gimmetesting.NewLogger()
	pool := apitesting.NewTestPool(t, testDB)

	wallets, err := wallet.NewStore(wallet.StoreConfig{Logger: log, Pool: pool})
	require.NoError(t, err)
	prizes, err := prize.NewStore(prize.StoreConfig{Logger: log, Pool: pool})
	require.NoError(t, err)
	feedStore, err := feed.NewStore(feed.StoreConfig{Logger: log, Pool: pool, Prizes: prizes})
	require.NoError(t, err)

	return &env{pool: pool, wallets: wallets, prizes: prizes, feed: feedStore}
}

func (e *env) wallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := e.wallets.Resolve(t.Context(), apitesting.NewKeypair(t).Address)
	require.NoError(t, err)
	return w
}

// scenario is a post by owner with a prize pool and one comment per commenter.
type scenario struct {
	owner      *wallet.Wallet
	post       *feed.Post
	pool       *prize.Pool
	commenters []*wallet.Wallet
	comments   []*feed.Comment
}

func (e *env) scenario(t *testing.T, total string, split prize.Split, commenters int) *scenario {
	t.Helper()
	ctx := t.Context()

	sc := &scenario{owner: e.wallet(t)}
	post, err := e.feed.CreatePost(ctx, feed.PostInput{
		WalletID: sc.owner.ID,
		Title:    "Idea " + t.Name(),
		Prize: &feed.PrizeInput{
			Total:  d(total),
			Split:  split,
			EndsAt: time.Now().Add(24 * time.Hour),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, post.PrizePool)
	sc.post = post
	sc.pool = post.PrizePool

	for range commenters {
		w := e.wallet(t)
		c, err := e.feed.AddComment(ctx, post.ID, w.ID, "feedback from "+w.Address)
		require.NoError(t, err)
		sc.commenters = append(sc.commenters, w)
		sc.comments = append(sc.comments, c)
	}
	return sc
}

func (e *env) lockEscrow(t *testing.T, sc *scenario) {
	t.Helper()
	pool, err := e.prizes.LockEscrow(t.Context(), sc.pool.ID, sc.owner.ID, apitesting.TxSignature(t))
	require.NoError(t, err)
	sc.pool = pool
}

func feedPost(owner uuid.UUID, total string, split prize.Split) feed.PostInput {
	return feed.PostInput{
		WalletID: owner,
		Title:    "Idea",
		Prize: &feed.PrizeInput{
			Total:  d(total),
			Split:  split,
			EndsAt: time.Now().Add(24 * time.Hour),
		},
	}
}

type rankingKey struct {
	CommentID uuid.UUID
	Rank      int
	Amount    string
}

func rankingKeys(rs []prize.Ranking) []rankingKey {
	out := make([]rankingKey, len(rs))
	for i, r := range rs {
		out[i] = rankingKey{CommentID: r.CommentID, Rank: r.Rank, Amount: r.Amount.String()}
	}
	return out
}
