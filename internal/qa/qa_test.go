package qa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/notification"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) {
	t.Helper()
	testutil.Setup(t)
	testutil.Migrate(t, directory.MigrateDB, notification.MigrateDB, MigrateDB)
	_, err := directory.WarmupIndex(context.Background())
	require.NoError(t, err)

	for _, p := range []directory.ProfileInput{
		{ID: "fresher", Year: "1", Branch: "CS"},
		{ID: "senior", Year: "3", Branch: "CS"},
		{ID: "alum", Year: "alumni", Branch: "CS"},
	} {
		_, err := directory.UpsertProfile(context.Background(), p)
		require.NoError(t, err)
	}
}

func countNotifications(t *testing.T, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, database.DB.Model(&notification.Notification{}).Where(where, args...).Count(&n).Error)
	return n
}

func TestSubmitQuestion(t *testing.T) {
	setup(t)
	ctx := context.Background()

	_, err := SubmitQuestion(ctx, QuestionInput{Branch: "CS", Content: "hi"})
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	_, err = SubmitQuestion(ctx, QuestionInput{AskerID: "fresher", Branch: "CS", Content: "   "})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = SubmitQuestion(ctx, QuestionInput{AskerID: "ghost", Branch: "CS", Content: "hi"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	id, err := SubmitQuestion(ctx, QuestionInput{AskerID: "fresher", Branch: "CS", Content: "Which electives?"})
	require.NoError(t, err)

	q, err := GetQuestion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "1", q.AskerYear)
	assert.False(t, q.IsAnswered)

	p, err := directory.GetProfile(ctx, "fresher")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.QuestionsAsked)

	assert.EqualValues(t, 2, countNotifications(t, "question_id = ?", id))
}

func TestSubmitQuestionRetryIsIdempotent(t *testing.T) {
	setup(t)
	ctx := context.Background()
	in := QuestionInput{AskerID: "fresher", Branch: "CS", Content: "Hostel?", RequestID: "req-1"}

	first, err := SubmitQuestion(ctx, in)
	require.NoError(t, err)
	second, err := SubmitQuestion(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	p, err := directory.GetProfile(ctx, "fresher")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.QuestionsAsked)
	assert.EqualValues(t, 2, countNotifications(t, "question_id = ?", first))
}

func TestSubmitAnswer(t *testing.T) {
	setup(t)
	ctx := context.Background()
	qid, err := SubmitQuestion(ctx, QuestionInput{AskerID: "fresher", Branch: "CS", Content: "Labs?"})
	require.NoError(t, err)

	_, err = SubmitAnswer(ctx, AnswerInput{QuestionID: "missing", AnswererID: "senior", Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	aid, err := SubmitAnswer(ctx, AnswerInput{QuestionID: qid, AnswererID: "senior", Content: "Take OS.", RequestID: "r"})
	require.NoError(t, err)
	again, err := SubmitAnswer(ctx, AnswerInput{QuestionID: qid, AnswererID: "senior", Content: "Take OS.", RequestID: "r"})
	require.NoError(t, err)
	assert.Equal(t, aid, again)

	q, err := GetQuestion(ctx, qid)
	require.NoError(t, err)
	assert.True(t, q.IsAnswered)

	a, err := GetAnswer(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, "senior", a.OwnerID)
	assert.Equal(t, "3", a.OwnerYear)

	p, err := directory.GetProfile(ctx, "senior")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.QuestionsAnswered)

	assert.EqualValues(t, 1, countNotifications(t, "answer_id = ? AND recipient_id = ?", aid, "fresher"))

	// 自问自答不产生通知
	self, err := SubmitAnswer(ctx, AnswerInput{QuestionID: qid, AnswererID: "fresher", Content: "Never mind"})
	require.NoError(t, err)
	assert.Zero(t, countNotifications(t, "answer_id = ?", self))
}

func TestGetChildrenOrderedByCreation(t *testing.T) {
	setup(t)
	ctx := context.Background()
	qid, err := SubmitQuestion(ctx, QuestionInput{AskerID: "fresher", Branch: "CS", Content: "Clubs?"})
	require.NoError(t, err)

	var ids []string
	for _, who := range []string{"senior", "alum", "senior"} {
		id, err := SubmitAnswer(ctx, AnswerInput{QuestionID: qid, AnswererID: who, Content: "answer by " + who})
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(5 * time.Millisecond)
	}

	children, err := GetChildren(ctx, qid)
	require.NoError(t, err)
	require.Len(t, children, 3)
	for i, a := range children {
		assert.Equal(t, ids[i], a.ID)
	}
}

func TestApplyCountDelta(t *testing.T) {
	setup(t)
	ctx := context.Background()
	qid, err := SubmitQuestion(ctx, QuestionInput{AskerID: "fresher", Branch: "CS", Content: "Food?"})
	require.NoError(t, err)
	aid, err := SubmitAnswer(ctx, AnswerInput{QuestionID: qid, AnswererID: "senior", Content: "Canteen B"})
	require.NoError(t, err)

	require.NoError(t, ApplyCountDelta(database.DB, aid, 1, 0))
	require.NoError(t, ApplyCountDelta(database.DB, aid, -1, 1))
	a, err := GetAnswer(ctx, aid)
	require.NoError(t, err)
	assert.EqualValues(t, 0, a.UsefulCount)
	assert.EqualValues(t, 1, a.NotUsefulCount)

	assert.ErrorIs(t, ApplyCountDelta(database.DB, "missing", 1, 0), apperr.ErrNotFound)
}

func TestListQuestionsByBranch(t *testing.T) {
	setup(t)
	ctx := context.Background()
	_, err := SubmitQuestion(ctx, QuestionInput{AskerID: "fresher", Branch: "CS", Content: "a"})
	require.NoError(t, err)
	_, err = SubmitQuestion(ctx, QuestionInput{AskerID: "fresher", Branch: "EE", Content: "b"})
	require.NoError(t, err)

	cs, err := ListQuestions(ctx, "CS", 10)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "a", cs[0].Content)

	all, err := ListQuestions(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestQuestionHandlers(t *testing.T) {
	setup(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(directory.UserIDKey, c.GetHeader("X-Test-User")); c.Next() })
	r.POST("/api/questions", PostQuestion)
	r.POST("/api/questions/:id/answers", PostAnswer)
	r.GET("/api/questions/:id", GetQuestionHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(`{"branch":"CS","content":"x"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(`{"branch":"CS","content":"x","requestId":"abc"}`))
	req.Header.Set("X-Test-User", "fresher")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"fanoutComplete":true`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/questions/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
