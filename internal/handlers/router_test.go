package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/proctoring-service/internal/detector"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories/memory"
	"github.com/SAP-F-2025/proctoring-service/internal/services"
	"github.com/SAP-F-2025/proctoring-service/internal/utils"
)

// labelDetector reads "label:severity" from the segment.
type labelDetector struct{}

func (labelDetector) Classify(ctx context.Context, segment []byte) (*detector.Result, error) {
	label, severity, found := strings.Cut(string(segment), ":")
	if !found {
		return detector.NoViolation(), nil
	}
	return &detector.Result{HasViolation: true, Label: label, Severity: severity}, nil
}

type testServer struct {
	store  *memory.Store
	router *gin.Engine
}

func newTestServer(t *testing.T, test models.Test, auth gin.HandlerFunc) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := utils.NewNopLogger()

	store := memory.NewStore()
	store.Seed(test,
		models.Question{ID: "1", Type: models.QuestionMCQ, Text: "Capital of France?", AnswerKey: "Paris", Marks: 1},
		models.Question{ID: "2", Type: models.QuestionTrueFalse, Text: "2+2=5", AnswerKey: "false", Marks: 2},
	)
	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:     store,
		Detector: labelDetector{},
		Logger:   utils.ToSlogLogger(logger),
	})

	router := NewRouter(logger, []string{"*"})
	NewHandlerManager(serviceManager, store, auth, []string{"proctor@example.com"}, logger).SetupRoutes(router)
	return &testServer{store: store, router: router}
}

func openWindow() models.Test {
	return models.Test{
		ID:          "T",
		Title:       "Midterm",
		QuestionIDs: []string{"1", "2"},
		StartTime:   time.Now().Add(-time.Minute),
		EndTime:     time.Now().Add(time.Hour),
		Duration:    60,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func chunkBody(payload string) gin.H {
	return gin.H{
		"studentId":     "A",
		"testId":        "T",
		"evidenceChunk": base64.StdEncoding.EncodeToString([]byte(payload)),
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestProctorChunk(t *testing.T) {
	t.Run("violation recorded", func(t *testing.T) {
		s := newTestServer(t, openWindow(), nil)

		w := s.do(t, http.MethodPost, "/proctor-chunk", chunkBody("phone-detected:high"))
		require.Equal(t, http.StatusOK, w.Code)
		result := decode[models.ChunkResult](t, w)
		assert.True(t, result.ViolationDetected)
		assert.Equal(t, models.LabelPhoneDetected, result.ViolationType)
		assert.Equal(t, models.SeverityHigh, result.Severity)
		assert.NotEmpty(t, w.Header().Get(utils.RequestIDHeader))
	})

	t.Run("clean chunk omits violation fields", func(t *testing.T) {
		s := newTestServer(t, openWindow(), nil)

		w := s.do(t, http.MethodPost, "/proctor-chunk", chunkBody("clean"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"violationDetected":false}`, w.Body.String())
	})

	t.Run("undecodable chunk is still 200", func(t *testing.T) {
		s := newTestServer(t, openWindow(), nil)

		w := s.do(t, http.MethodPost, "/proctor-chunk", gin.H{"studentId": "A", "testId": "T", "evidenceChunk": "***"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[models.ChunkResult](t, w).ViolationDetected)
	})

	tests := []struct {
		name   string
		body   interface{}
		setup  func(s *testServer)
		test   func() models.Test
		status int
		code   string
	}{
		{name: "missing fields", body: gin.H{"testId": "T"}, status: http.StatusBadRequest, code: CodeMissingFields},
		{name: "malformed json", body: `{"testId":`, status: http.StatusBadRequest, code: CodeMissingFields},
		{name: "store unavailable", body: chunkBody("phone:high"), setup: func(s *testServer) { s.store.SetUnavailable(true) }, status: http.StatusServiceUnavailable, code: CodeDatabaseUnavailable},
		{
			name: "before window",
			body: chunkBody("phone:high"),
			test: func() models.Test {
				test := openWindow()
				test.StartTime, test.EndTime = time.Now().Add(time.Hour), time.Now().Add(2*time.Hour)
				return test
			},
			status: http.StatusForbidden,
			code:   CodeTestNotStarted,
		},
		{
			name: "after window",
			body: chunkBody("phone:high"),
			test: func() models.Test {
				test := openWindow()
				test.StartTime, test.EndTime = time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour)
				return test
			},
			status: http.StatusForbidden,
			code:   CodeTestEnded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test := openWindow()
			if tt.test != nil {
				test = tt.test()
			}
			s := newTestServer(t, test, nil)
			if tt.setup != nil {
				tt.setup(s)
			}

			w := s.do(t, http.MethodPost, "/proctor-chunk", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestSubmitTest(t *testing.T) {
	s := newTestServer(t, openWindow(), nil)

	for _, payload := range []string{"phone-detected:high", "looking-away:low", "clean"} {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/proctor-chunk", chunkBody(payload)).Code)
	}

	now := time.Now()
	body := gin.H{
		"studentId": "A",
		"testId":    "T",
		"answers":   gin.H{"1": "Paris", "2": "true"},
		"startTime": now.Add(-20 * time.Second).UnixMilli(),
		"endTime":   now.Format(time.RFC3339Nano),
	}
	w := s.do(t, http.MethodPost, "/submit-test", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"actualScore":1,"trustScore":88,"violationCount":2}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/submit-test", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeTestAlreadySubmitted, decode[ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPost, "/submit-test", gin.H{"studentId": "A", "testId": "T"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeMissingFields, decode[ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodGet, "/attempts/T/A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[models.AttemptDetail](t, w)
	assert.Equal(t, models.AttemptSubmitted, detail.Attempt.Status)
	assert.Len(t, detail.Events, 2)
}

func TestStartTest(t *testing.T) {
	s := newTestServer(t, openWindow(), nil)

	w := s.do(t, http.MethodPost, "/start-test", gin.H{"studentId": "A", "testId": "T"})
	require.Equal(t, http.StatusOK, w.Code)
	attempt := decode[models.ExamAttempt](t, w)
	assert.Equal(t, models.AttemptInProgress, attempt.Status)

	w = s.do(t, http.MethodPost, "/start-test", gin.H{"studentId": "A", "testId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeTestNotFound, decode[ErrorResponse](t, w).Code)
}

func TestGetTest(t *testing.T) {
	test := openWindow()
	test.Participants = []string{"a@example.com"}
	s := newTestServer(t, test, nil)

	w := s.do(t, http.MethodGet, "/test/T?email=a@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Paris")
	view := decode[models.TestView](t, w)
	assert.Len(t, view.Questions, 2)

	w = s.do(t, http.MethodGet, "/test/T?studentId=B", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeTestNotFound, decode[ErrorResponse](t, w).Code)
}

func TestReviewEvent(t *testing.T) {
	s := newTestServer(t, openWindow(), nil)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/proctor-chunk", chunkBody("phone:high")).Code)

	w := s.do(t, http.MethodPatch, "/proctoring-events/1/review", gin.H{"verdict": "confirmed", "reviewer": "proctor"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	event := decode[models.ProctoringEvent](t, w)
	assert.True(t, event.Reviewed)

	w = s.do(t, http.MethodPatch, "/proctoring-events/abc/review", gin.H{"verdict": "confirmed", "reviewer": "proctor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/proctoring-events/99/review", gin.H{"verdict": "confirmed", "reviewer": "proctor"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeEventNotFound, decode[ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPatch, "/proctoring-events/1/review", gin.H{"verdict": "unsure", "reviewer": "proctor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewEvent_RequiresReviewer(t *testing.T) {
	parser := func(token string) (*Identity, error) {
		switch token {
		case "student":
			return &Identity{ID: "A", Name: "alice"}, nil
		case "proctor":
			return &Identity{ID: "P1", Name: "proctor", Email: "proctor@example.com"}, nil
		case "admin":
			return &Identity{ID: "root", Admin: true}, nil
		}
		return nil, errors.New("bad signature")
	}
	s := newTestServer(t, openWindow(), AuthMiddleware(parser, utils.NewNopLogger()))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/proctor-chunk", chunkBody("phone:high"), "Authorization", "Bearer student").Code)

	dismiss := gin.H{"verdict": "dismissed", "reviewer": "head-proctor"}
	w := s.do(t, http.MethodPatch, "/proctoring-events/1/review", dismiss, "Authorization", "Bearer student")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeForbidden, decode[ErrorResponse](t, w).Code)

	stored, err := s.store.Ledger().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, stored.Reviewed)
	assert.Nil(t, stored.Verdict)

	w = s.do(t, http.MethodPatch, "/proctoring-events/1/review", dismiss, "Authorization", "Bearer proctor")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	event := decode[models.ProctoringEvent](t, w)
	require.NotNil(t, event.Reviewer)
	assert.Equal(t, "P1", *event.Reviewer)

	w = s.do(t, http.MethodPatch, "/proctoring-events/1/review", gin.H{"verdict": "confirmed", "reviewer": "x"}, "Authorization", "Bearer admin")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	event = decode[models.ProctoringEvent](t, w)
	assert.Equal(t, "root", *event.Reviewer)
	assert.Equal(t, models.VerdictConfirmed, *event.Verdict)
}

func TestAttemptReport(t *testing.T) {
	s := newTestServer(t, openWindow(), nil)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/proctor-chunk", chunkBody("phone:high")).Code)

	w := s.do(t, http.MethodGet, "/attempts/T/A/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "proctoring-T-A.xlsx")
	assert.NotEmpty(t, w.Body.Bytes())

	w = s.do(t, http.MethodGet, "/attempts/T/nobody/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, openWindow(), nil)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)

	s.store.SetUnavailable(true)
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	parser := func(token string) (*Identity, error) {
		if token != "good" {
			return nil, errors.New("bad signature")
		}
		return &Identity{ID: "A", Name: "alice", Email: "a@example.com"}, nil
	}
	s := newTestServer(t, openWindow(), AuthMiddleware(parser, utils.NewNopLogger()))

	w := s.do(t, http.MethodPost, "/proctor-chunk", chunkBody("clean"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/proctor-chunk", chunkBody("clean"), "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/proctor-chunk", chunkBody("clean"), "Authorization", "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)

	other := chunkBody("clean")
	other["studentId"] = "B"
	w = s.do(t, http.MethodPost, "/proctor-chunk", other, "Authorization", "Bearer good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeForbidden, decode[ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodGet, "/test/T", nil, "Authorization", "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
}

func TestIdentity_Matches(t *testing.T) {
	identity := &Identity{ID: "42", Name: "alice", Email: "Alice@Example.com"}
	assert.True(t, identity.Matches("42"))
	assert.True(t, identity.Matches("alice@example.com"))
	assert.False(t, identity.Matches(""))
	assert.False(t, identity.Matches("bob"))
	assert.Equal(t, "42", identity.Subject())
}
