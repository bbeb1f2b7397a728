package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *testutil.Env {
	t.Helper()
	env := testutil.Setup(t)
	testutil.Migrate(t, directory.MigrateDB, MigrateDB)
	_, err := directory.WarmupIndex(context.Background())
	require.NoError(t, err)
	return env
}

func seedProfiles(t *testing.T, profiles ...directory.ProfileInput) {
	t.Helper()
	for _, p := range profiles {
		_, err := directory.UpsertProfile(context.Background(), p)
		require.NoError(t, err)
	}
}

func recipients(t *testing.T, sourceEventID string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, database.DB.Model(&Notification{}).
		Where("source_event_id = ?", sourceEventID).
		Order("recipient_id").
		Pluck("recipient_id", &ids).Error)
	return ids
}

func cohort(t *testing.T) {
	seedProfiles(t,
		directory.ProfileInput{ID: "y1", Year: "1", Branch: "CS"},
		directory.ProfileInput{ID: "y2", Year: "2", Branch: "CS"},
		directory.ProfileInput{ID: "y3", Year: "3", Branch: "CS"},
		directory.ProfileInput{ID: "y4", Year: "4", Branch: "CS"},
		directory.ProfileInput{ID: "al", Year: "Alumni", Branch: "CS"},
		directory.ProfileInput{ID: "ee", Year: "4", Branch: "EE"},
	)
}

func TestFanoutQuestionAudience(t *testing.T) {
	setup(t)
	cohort(t)
	ctx := context.Background()

	n, err := FanoutQuestion(ctx, QuestionEvent{QuestionID: "q1", Branch: "CS", AskerID: "y1", AskerYear: "1"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"al", "y2", "y3", "y4"}, recipients(t, QuestionSourceEventID("q1")))

	n, err = FanoutQuestion(ctx, QuestionEvent{QuestionID: "q3", Branch: "CS", AskerID: "y3", AskerYear: "3"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"al", "y4"}, recipients(t, QuestionSourceEventID("q3")))

	n, err = FanoutQuestion(ctx, QuestionEvent{QuestionID: "qa", Branch: "CS", AskerID: "al", AskerYear: "alumni"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFanoutQuestionIsIdempotent(t *testing.T) {
	setup(t)
	cohort(t)
	ctx := context.Background()
	ev := QuestionEvent{QuestionID: "q1", Branch: "CS", AskerID: "y2", AskerYear: "2"}

	n, err := FanoutQuestion(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = FanoutQuestion(ctx, ev)
	require.NoError(t, err)
	assert.Zero(t, n)

	var count int64
	require.NoError(t, database.DB.Model(&Notification{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestFanoutAnswer(t *testing.T) {
	setup(t)
	ctx := context.Background()

	n, err := FanoutAnswer(ctx, AnswerEvent{AnswerID: "a1", QuestionID: "q1", Branch: "CS", QuestionOwnerID: "asker", AnswererID: "asker"})
	require.NoError(t, err)
	assert.Zero(t, n, "self answers do not notify")

	ev := AnswerEvent{AnswerID: "a2", QuestionID: "q1", Branch: "CS", QuestionOwnerID: "asker", AnswererID: "senior"}
	n, err = FanoutAnswer(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = FanoutAnswer(ctx, ev)
	require.NoError(t, err)
	assert.Zero(t, n)

	var got Notification
	require.NoError(t, database.DB.First(&got, "id = ?", NotificationID(AnswerSourceEventID("a2"), "asker")).Error)
	assert.Equal(t, TypeAnswer, got.Type)
	assert.Equal(t, "a2", got.AnswerID)
	assert.False(t, got.IsRead)
}

func TestFanoutPushesOnlyNewNotifications(t *testing.T) {
	env := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := env.RDB.Subscribe(ctx, Channel("asker"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ev := AnswerEvent{AnswerID: "a1", QuestionID: "q1", Branch: "CS", QuestionOwnerID: "asker", AnswererID: "senior"}
	_, err = FanoutAnswer(ctx, ev)
	require.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var payload pushMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, NotificationID(AnswerSourceEventID("a1"), "asker"), payload.ID)

	// 重放不会再次推送
	_, err = FanoutAnswer(ctx, ev)
	require.NoError(t, err)
	short, cancelShort := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelShort()
	_, err = sub.ReceiveMessage(short)
	assert.Error(t, err)
}

func TestFanoutSurvivesRedisOutage(t *testing.T) {
	setup(t)
	database.UpdateStatus(false, "")

	n, err := FanoutAnswer(context.Background(), AnswerEvent{AnswerID: "a1", QuestionID: "q1", QuestionOwnerID: "asker", AnswererID: "senior"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenNotification(t *testing.T) {
	setup(t)
	ctx := context.Background()
	_, err := FanoutAnswer(ctx, AnswerEvent{AnswerID: "a1", QuestionID: "q1", Branch: "CS", QuestionOwnerID: "asker", AnswererID: "senior"})
	require.NoError(t, err)
	id := NotificationID(AnswerSourceEventID("a1"), "asker")

	_, err = OpenNotification(ctx, id, "")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	_, err = OpenNotification(ctx, id, "someone-else")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	target, err := OpenNotification(ctx, id, "asker")
	require.NoError(t, err)
	assert.Equal(t, Target{QuestionID: "q1", AnswerID: "a1", Branch: "CS"}, *target)

	again, err := OpenNotification(ctx, id, "asker")
	require.NoError(t, err)
	assert.Equal(t, target, again)

	list, unread, err := List(ctx, "asker", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)
	assert.Zero(t, unread)
}

func TestListNewestFirst(t *testing.T) {
	setup(t)
	ctx := context.Background()
	for _, a := range []string{"a1", "a2", "a3"} {
		_, err := FanoutAnswer(ctx, AnswerEvent{AnswerID: a, QuestionID: "q1", QuestionOwnerID: "asker", AnswererID: "senior"})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	list, unread, err := List(ctx, "asker", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a3", list[0].AnswerID)
	assert.Equal(t, "a2", list[1].AnswerID)
	assert.EqualValues(t, 3, unread)
}

// syncRecorder 允许在处理函数仍在写入时安全地读取响应体
type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(b)
}

func (r *syncRecorder) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

func (r *syncRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResponseRecorder.Flush()
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestStreamSendsSnapshotOnPush(t *testing.T) {
	env := setup(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(directory.UserIDKey, "asker"); c.Next() })
	r.GET("/stream", StreamNotifications)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool {
		return strings.Count(rec.body(), "event:snapshot") >= 1 &&
			env.Redis.PubSubNumSub(Channel("asker"))[Channel("asker")] == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err := FanoutAnswer(context.Background(), AnswerEvent{AnswerID: "a1", QuestionID: "q1", QuestionOwnerID: "asker", AnswererID: "senior"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Count(rec.body(), "event:snapshot") >= 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, rec.body(), `"unread":1`)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after the client went away")
	}
}

func TestNotificationHandlersRequireAuth(t *testing.T) {
	setup(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(directory.LoadUserMiddleware())
	r.GET("/api/notifications", GetNotifications)
	r.POST("/api/notifications/:id/open", OpenNotificationHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/notifications/x/open", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
