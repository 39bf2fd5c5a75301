package job_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trailmark/features/job"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}
func (m *MockRepo) List(ctx context.Context) ([]job.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Job), args.Error(1)
}
func (m *MockRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}
func (m *MockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestHandler_List(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo, nil, slog.Default())
	handler := job.NewHandler(svc)

	mockRepo.On("List", mock.Anything).Return(nil, nil)

	req := httptest.NewRequest("GET", "/jobs/failed", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var resp struct {
		Data []job.Job      `json:"data"`
		Meta map[string]int `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotNil(t, resp.Data)
	assert.Equal(t, 0, resp.Meta["count"])
}

func TestHandler_List_Error(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil, slog.Default()))

	mockRepo.On("List", mock.Anything).Return(nil, errors.New("db down"))

	req := httptest.NewRequest("GET", "/jobs/failed", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

const parkedID = "6f1c2b1e-0d4a-4c55-9a53-2f7f6f0b8a11"

func TestHandler_List_FilterByTopic(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil, slog.Default()))

	mockRepo.On("List", mock.Anything).Return([]job.Job{
		{ID: "a", Topic: "raw"},
		{ID: "b", Topic: "processed"},
		{ID: "c", Topic: "raw"},
	}, nil)

	req := httptest.NewRequest("GET", "/jobs/failed?topic=raw", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []job.Job      `json:"data"`
		Meta map[string]int `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Meta["count"])
	for _, j := range resp.Data {
		assert.Equal(t, "raw", j.Topic)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil, slog.Default()))

	tests := []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"get", handler.Get},
		{"retry", handler.Retry},
		{"discard", handler.Discard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/jobs/99", nil)
			req.SetPathValue("id", "99")
			w := httptest.NewRecorder()

			tt.fn(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_ID")
		})
	}
	mockRepo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestHandler_Get(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil, slog.Default()))

	mockRepo.On("Get", mock.Anything, parkedID).Return(&job.Job{
		ID:      parkedID,
		Topic:   "raw",
		Handler: "enrich",
		Payload: []byte("not json"),
		Error:   "invalid message",
	}, nil)

	req := httptest.NewRequest("GET", "/jobs/failed/"+parkedID, nil)
	req.SetPathValue("id", parkedID)
	w := httptest.NewRecorder()

	handler.Get(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"payload":"not json"`)
}

func TestHandler_Retry_NotFound(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	handler := job.NewHandler(job.NewService(mockRepo, mockPub, slog.Default()))

	mockRepo.On("Get", mock.Anything, parkedID).Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("POST", "/jobs/"+parkedID+"/retry", nil)
	req.SetPathValue("id", parkedID)
	w := httptest.NewRecorder()

	handler.Retry(w, req)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
	mockPub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHandler_Retry(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	handler := job.NewHandler(job.NewService(mockRepo, mockPub, slog.Default()))

	j := &job.Job{
		ID:      parkedID,
		Topic:   "raw",
		Payload: []byte(`{"url": "http://example.com"}`),
	}

	mockRepo.On("Get", mock.Anything, parkedID).Return(j, nil)
	mockPub.On("Publish", "raw", mock.Anything).Return(nil)
	mockRepo.On("Delete", mock.Anything, parkedID).Return(nil)

	req := httptest.NewRequest("POST", "/jobs/"+parkedID+"/retry", nil)
	req.SetPathValue("id", parkedID)
	w := httptest.NewRecorder()

	handler.Retry(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	mockRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}

func TestHandler_Retry_PublishFails(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	handler := job.NewHandler(job.NewService(mockRepo, mockPub, slog.Default()))

	mockRepo.On("Get", mock.Anything, parkedID).Return(&job.Job{ID: parkedID, Topic: "processed"}, nil)
	mockPub.On("Publish", "processed", mock.Anything).Return(errors.New("broker down"))

	req := httptest.NewRequest("POST", "/jobs/"+parkedID+"/retry", nil)
	req.SetPathValue("id", parkedID)
	w := httptest.NewRecorder()

	handler.Retry(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestHandler_Discard(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"missing", sql.ErrNoRows, http.StatusNotFound},
		{"db error", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepo)
			handler := job.NewHandler(job.NewService(mockRepo, nil, slog.Default()))
			mockRepo.On("Delete", mock.Anything, parkedID).Return(tt.err)

			req := httptest.NewRequest("DELETE", "/jobs/failed/"+parkedID, nil)
			req.SetPathValue("id", parkedID)
			w := httptest.NewRecorder()

			handler.Discard(w, req)
			assert.Equal(t, tt.status, w.Code)
			mockRepo.AssertExpectations(t)
		})
	}
}
