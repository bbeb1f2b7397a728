package vote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/notification"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/config"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/qa"
	"github.com/SlpAus/guideu-backend/internal/reputation"
	"github.com/SlpAus/guideu-backend/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env      *testutil.Env
	answerID string
}

// setup 准备一个由 Y 回答、X 可以投票的问题
func setup(t *testing.T, voters ...string) fixture {
	t.Helper()
	env := testutil.Setup(t)
	testutil.Migrate(t, directory.MigrateDB, notification.MigrateDB, qa.MigrateDB, MigrateDB)
	ctx := context.Background()
	_, err := directory.WarmupIndex(ctx)
	require.NoError(t, err)

	profiles := []directory.ProfileInput{
		{ID: "asker", Year: "1", Branch: "CS"},
		{ID: "Y", Year: "4", Branch: "CS"},
		{ID: "X", Year: "2", Branch: "CS"},
	}
	for _, v := range voters {
		profiles = append(profiles, directory.ProfileInput{ID: v, Year: "2", Branch: "CS"})
	}
	for _, p := range profiles {
		_, err := directory.UpsertProfile(ctx, p)
		require.NoError(t, err)
	}

	qid, err := qa.SubmitQuestion(ctx, qa.QuestionInput{AskerID: "asker", Branch: "CS", Content: "Best lab?"})
	require.NoError(t, err)
	aid, err := qa.SubmitAnswer(ctx, qa.AnswerInput{QuestionID: qid, AnswererID: "Y", Content: "Lab 3"})
	require.NoError(t, err)
	require.NoError(t, reputation.WarmupLeaderboard(ctx))

	return fixture{env: env, answerID: aid}
}

func (f fixture) answer(t *testing.T) *qa.Answer {
	t.Helper()
	a, err := qa.GetAnswer(context.Background(), f.answerID)
	require.NoError(t, err)
	return a
}

func coins(t *testing.T, userID string) int64 {
	t.Helper()
	p, err := directory.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	return p.Coins
}

func ledgerCount(t *testing.T, answerID string) (total, useful, notUseful int64) {
	t.Helper()
	require.NoError(t, database.DB.Model(&Entry{}).Where("answer_id = ?", answerID).Count(&total).Error)
	require.NoError(t, database.DB.Model(&Entry{}).Where("answer_id = ? AND vote_type = ?", answerID, TypeUseful).Count(&useful).Error)
	require.NoError(t, database.DB.Model(&Entry{}).Where("answer_id = ? AND vote_type = ?", answerID, TypeNotUseful).Count(&notUseful).Error)
	return
}

func TestConcreteUsefulThenNotUseful(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.Zero(t, coins(t, "Y"))

	res, err := CastVote(ctx, f.answerID, "X", TypeUseful)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOk, res.Outcome)
	assert.EqualValues(t, 1, res.CoinDelta)
	assert.EqualValues(t, 1, coins(t, "Y"))
	a := f.answer(t)
	assert.EqualValues(t, 1, a.UsefulCount)
	assert.EqualValues(t, 0, a.NotUsefulCount)
	total, _, _ := ledgerCount(t, f.answerID)
	assert.EqualValues(t, 1, total)

	res, err = CastVote(ctx, f.answerID, "X", TypeNotUseful)
	require.NoError(t, err)
	assert.Equal(t, TypeUseful, res.Previous)
	assert.EqualValues(t, 0, coins(t, "Y"))
	a = f.answer(t)
	assert.EqualValues(t, 0, a.UsefulCount)
	assert.EqualValues(t, 1, a.NotUsefulCount)
	total, _, _ = ledgerCount(t, f.answerID)
	assert.EqualValues(t, 1, total)

	p, err := directory.GetProfile(ctx, "Y")
	require.NoError(t, err)
	assert.Zero(t, p.TotalUsefulReceived)
}

func TestRepeatedClickIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := CastVote(ctx, f.answerID, "X", TypeUseful)
	require.NoError(t, err)
	res, err := CastVote(ctx, f.answerID, "X", TypeUseful)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVoted, res.Outcome)
	assert.Zero(t, res.CoinDelta)

	total, useful, _ := ledgerCount(t, f.answerID)
	assert.EqualValues(t, 1, total)
	assert.EqualValues(t, 1, useful)
	assert.EqualValues(t, 1, f.answer(t).UsefulCount)
	assert.EqualValues(t, 1, coins(t, "Y"))
}

func TestRoundTripRestoresCoins(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := CastVote(ctx, f.answerID, "X", TypeUseful)
	require.NoError(t, err)
	before := coins(t, "Y")

	_, err = CastVote(ctx, f.answerID, "X", TypeNotUseful)
	require.NoError(t, err)
	_, err = CastVote(ctx, f.answerID, "X", TypeUseful)
	require.NoError(t, err)
	assert.Equal(t, before, coins(t, "Y"))
}

func TestNotUsefulFirstHasNoCoinEffect(t *testing.T) {
	f := setup(t)
	res, err := CastVote(context.Background(), f.answerID, "X", TypeNotUseful)
	require.NoError(t, err)
	assert.Zero(t, res.CoinDelta)
	assert.Zero(t, coins(t, "Y"))
	assert.EqualValues(t, 1, f.answer(t).NotUsefulCount)
}

func TestRejectedVotesChangeNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := CastVote(ctx, f.answerID, "Y", TypeUseful)
	assert.ErrorIs(t, err, apperr.ErrSelfVoteForbidden)

	_, err = CastVote(ctx, f.answerID, "", TypeUseful)
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	_, err = CastVote(ctx, "missing", "X", TypeUseful)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = CastVote(ctx, f.answerID, "X", Type("meh"))
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	total, _, _ := ledgerCount(t, f.answerID)
	assert.Zero(t, total)
	a := f.answer(t)
	assert.Zero(t, a.UsefulCount)
	assert.Zero(t, a.NotUsefulCount)
	assert.Zero(t, coins(t, "Y"))
}

func TestConcurrentVotersKeepCountsExact(t *testing.T) {
	var voters []string
	for i := 0; i < 12; i++ {
		voters = append(voters, fmt.Sprintf("v%02d", i))
	}
	f := setup(t, voters...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, v := range voters {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			_, err := CastVote(ctx, f.answerID, v, TypeUseful)
			assert.NoError(t, err)
		}(v)
	}
	wg.Wait()

	a := f.answer(t)
	assert.EqualValues(t, len(voters), a.UsefulCount)
	assert.EqualValues(t, len(voters), coins(t, "Y"))
}

func TestConcurrentSwitchesBySameVoterConverge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		vt := TypeUseful
		if i%2 == 1 {
			vt = TypeNotUseful
		}
		go func(vt Type) {
			defer wg.Done()
			_, _ = CastVote(ctx, f.answerID, "X", vt)
		}(vt)
	}
	wg.Wait()

	total, useful, notUseful := ledgerCount(t, f.answerID)
	require.EqualValues(t, 1, total)
	a := f.answer(t)
	assert.Equal(t, useful, a.UsefulCount)
	assert.Equal(t, notUseful, a.NotUsefulCount)
	assert.Equal(t, useful, coins(t, "Y"))
}

func TestCastVoteMirrorsLeaderboard(t *testing.T) {
	f := setup(t)
	_, err := CastVote(context.Background(), f.answerID, "X", TypeUseful)
	require.NoError(t, err)

	score, err := f.env.Redis.ZScore(reputation.RankingKey, "Y")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestAllowVoteSlidingWindow(t *testing.T) {
	setup(t)
	prev := settings()
	Configure(config.VoteConfig{RateLimit: config.RateLimitConfig{Window: time.Minute, Max: 2}})
	t.Cleanup(func() { Configure(prev) })

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 2; i++ {
		ok, err := AllowVote(ctx, "X", now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := AllowVote(ctx, "X", now.Add(3*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	// 窗口滑过之后恢复
	ok, err = AllowVote(ctx, "X", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	// Redis 不可用时放行
	database.UpdateStatus(false, "")
	for i := 0; i < 5; i++ {
		ok, err = AllowVote(ctx, "X", now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestSubmitVoteHandler(t *testing.T) {
	f := setup(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(directory.UserIDKey, c.GetHeader("X-Test-User")); c.Next() })
	r.POST("/api/answers/:id/vote", SubmitVote)

	do := func(user, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/answers/"+f.answerID+"/vote", strings.NewReader(body))
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("", `{"type":"useful"}`).Code)
	assert.Equal(t, http.StatusForbidden, do("Y", `{"type":"useful"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do("X", `{}`).Code)

	w := do("X", `{"type":"useful"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alreadyVoted":false`)
	assert.Contains(t, w.Body.String(), `"usefulCount":1`)

	w = do("X", `{"type":"useful"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alreadyVoted":true`)
	assert.Contains(t, w.Body.String(), `"outcome":"alreadyVoted"`)
	assert.NotContains(t, w.Body.String(), `"error"`, "a repeated click is a normal response, not an error")
}
