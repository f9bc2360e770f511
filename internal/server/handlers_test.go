package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/medplan/internal/database"
	"github.com/example/medplan/internal/revision"
	"github.com/example/medplan/pkg/models"
)

func newTestServer(t *testing.T) (*Server, *database.TopicRepository) {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	topics := database.NewTopicRepository(db)
	revisions := database.NewRevisionRepository(db)
	svc := revision.NewService(revisions, topics, nil)
	return New(svc, nil), topics
}

func seedTopic(t *testing.T, topics *database.TopicRepository, userID int64, theme string) int64 {
	t.Helper()
	topic := &models.StudyTopic{
		UserID:      userID,
		Theme:       theme,
		Discipline:  "Physiology",
		PlannedDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, topics.Create(context.Background(), topic))
	return topic.ID
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)

	payload := map[string]json.RawMessage{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// Validation failures come back as plain text; leave the map empty.
	_ = json.Unmarshal(raw, &payload)
	return resp, payload
}

func decodeRevision(t *testing.T, raw json.RawMessage) models.Revision {
	t.Helper()
	var rev models.Revision
	require.NoError(t, json.Unmarshal(raw, &rev))
	return rev
}

func TestCompleteTopic_CreatesFirstRevision(t *testing.T) {
	s, topics := newTestServer(t)
	topicID := seedTopic(t, topics, 1, "Renal Physiology")

	resp, payload := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/topics/%d/complete", topicID),
		map[string]string{"completed_on": "2024-01-01"})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rev := decodeRevision(t, payload["revision"])
	assert.Equal(t, models.StageD1, rev.Stage)
	assert.Equal(t, "2024-01-02", rev.ScheduledDate.Format("2006-01-02"))
	assert.Equal(t, "Renal Physiology", rev.Theme)
}

func TestCompleteTopic_UnknownTopic(t *testing.T) {
	s, _ := newTestServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/topics/999/complete",
		map[string]string{"completed_on": "2024-01-01"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteTopic_BadDate(t *testing.T) {
	s, topics := newTestServer(t)
	topicID := seedTopic(t, topics, 1, "Renal Physiology")

	resp, _ := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/topics/%d/complete", topicID),
		map[string]string{"completed_on": "01/02/2024"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRevisionLifecycleOverHTTP(t *testing.T) {
	s, topics := newTestServer(t)
	topicID := seedTopic(t, topics, 1, "Renal Physiology")

	_, payload := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/topics/%d/complete", topicID),
		map[string]string{"completed_on": "2024-01-01"})
	first := decodeRevision(t, payload["revision"])

	// Complete D1 on its due date; D7 comes back alongside.
	resp, payload := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/revisions/%d/complete", first.ID),
		map[string]string{"completed_on": "2024-01-02"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	completed := decodeRevision(t, payload["completed"])
	assert.True(t, completed.IsCompleted)
	next := decodeRevision(t, payload["next"])
	assert.Equal(t, models.StageD7, next.Stage)
	assert.Equal(t, "2024-01-09", next.ScheduledDate.Format("2006-01-02"))

	// A duplicate completion is rejected and creates nothing.
	resp, payload = doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/revisions/%d/complete", first.ID),
		map[string]string{"completed_on": "2024-01-03"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(payload["state"]), "completed")

	// Refuse D7, check the buckets, reactivate.
	resp, _ = doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/revisions/%d/refuse", next.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, s, http.MethodGet,
		"/api/v1/users/1/buckets?today=2024-01-09", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refused []models.Revision
	require.NoError(t, json.Unmarshal(payload["refused"], &refused))
	require.Len(t, refused, 1)
	var todayBucket []models.Revision
	require.NoError(t, json.Unmarshal(payload["today"], &todayBucket))
	assert.Empty(t, todayBucket)

	resp, _ = doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/revisions/%d/reactivate", next.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, s, http.MethodGet,
		"/api/v1/users/1/buckets?today=2024-01-10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var late []models.Revision
	require.NoError(t, json.Unmarshal(payload["late"], &late))
	require.Len(t, late, 1, "reactivated revision falls late the day after")
}

func TestRefuse_NonPendingConflicts(t *testing.T) {
	s, topics := newTestServer(t)
	topicID := seedTopic(t, topics, 1, "Renal Physiology")

	_, payload := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/topics/%d/complete", topicID),
		map[string]string{"completed_on": "2024-01-01"})
	first := decodeRevision(t, payload["revision"])

	_, _ = doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/revisions/%d/refuse", first.ID), nil)
	resp, _ := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/revisions/%d/refuse", first.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUncompleteTopic_CascadesPending(t *testing.T) {
	s, topics := newTestServer(t)
	topicID := seedTopic(t, topics, 1, "Renal Physiology")

	_, _ = doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/topics/%d/complete", topicID),
		map[string]string{"completed_on": "2024-01-01"})

	resp, payload := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/v1/topics/%d/uncomplete", topicID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", string(payload["deleted_pending"]))

	resp, payload = doJSON(t, s, http.MethodGet,
		"/api/v1/users/1/buckets?today=2024-01-02", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var todayBucket []models.Revision
	require.NoError(t, json.Unmarshal(payload["today"], &todayBucket))
	assert.Empty(t, todayBucket)
}

func TestBuckets_BadParams(t *testing.T) {
	s, _ := newTestServer(t)

	resp, _ := doJSON(t, s, http.MethodGet, "/api/v1/users/abc/buckets", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodGet, "/api/v1/users/1/buckets?today=notadate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
