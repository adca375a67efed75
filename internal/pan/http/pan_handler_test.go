package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
	panDomain "github.com/allisson/panvault/internal/pan/domain"
	"github.com/allisson/panvault/internal/pan/http/dto"
	"github.com/allisson/panvault/internal/pan/usecase/mocks"
)

const (
	testHpan = "a3f1c2d4e5b6978012345678901234567890abcdef1234567890abcdef123456"
	testPan  = "4111111111111111"
)

// setupTestHandler creates a test handler with mocked dependencies.
func setupTestHandler(t *testing.T) (*PanHandler, *mocks.MockPanUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockUseCase := &mocks.MockPanUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := NewPanHandler(mockUseCase, logger)

	return handler, mockUseCase
}

func TestPanHandler_IngestHandler(t *testing.T) {
	t.Run("Success_ValidRequest", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.IngestRequest{
			Hpan: testHpan,
			Pan:  testPan,
		}

		mockUseCase.On("Ingest", mock.Anything, testHpan, testPan, time.Time{}).
			Return(nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/pans", request)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response dto.IngestResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, testHpan, response.Hpan)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Success_WithSeenAt", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		seenAt := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
		request := dto.IngestRequest{
			Hpan:   testHpan,
			Pan:    testPan,
			SeenAt: seenAt,
		}

		mockUseCase.On("Ingest", mock.Anything, testHpan, testPan, seenAt).
			Return(nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/pans", request)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/pans", nil)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUseCase.AssertNotCalled(t, "Ingest")
	})

	t.Run("Error_InvalidHpan", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.IngestRequest{
			Hpan: "not-a-hash",
			Pan:  testPan,
		}

		c, w := createTestContext(http.MethodPost, "/v1/pans", request)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
		mockUseCase.AssertNotCalled(t, "Ingest")
	})

	t.Run("Error_InvalidPan", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.IngestRequest{
			Hpan: testHpan,
			Pan:  "1234",
		}

		c, w := createTestContext(http.MethodPost, "/v1/pans", request)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockUseCase.AssertNotCalled(t, "Ingest")
	})

	t.Run("Error_KeyringNotReady", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.IngestRequest{
			Hpan: testHpan,
			Pan:  testPan,
		}

		mockUseCase.On("Ingest", mock.Anything, testHpan, testPan, time.Time{}).
			Return(cryptoDomain.ErrNotReady).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/pans", request)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_HpanMismatch", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.IngestRequest{
			Hpan: strings.Repeat("b", 64),
			Pan:  testPan,
		}

		mockUseCase.On("Ingest", mock.Anything, strings.Repeat("b", 64), testPan, time.Time{}).
			Return(panDomain.ErrHpanMismatch).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/pans", request)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockUseCase.AssertExpectations(t)
	})
}

func TestPanHandler_DecryptHandler(t *testing.T) {
	t.Run("Success_ValidRequest", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.DecryptRequest{
			Hpan:        testHpan,
			RequestedBy: "fraud-review@example.com",
			Reason:      "chargeback investigation",
		}

		mockUseCase.On(
			"DecryptByHpan",
			mock.Anything,
			testHpan,
			"fraud-review@example.com",
			"chargeback investigation",
		).Return(testPan, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/pans/decrypt", request)

		handler.DecryptHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.DecryptResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, testPan, response.Pan)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/pans/decrypt", nil)

		handler.DecryptHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUseCase.AssertNotCalled(t, "DecryptByHpan")
	})

	t.Run("Error_MissingReason", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.DecryptRequest{
			Hpan:        testHpan,
			RequestedBy: "fraud-review@example.com",
		}

		c, w := createTestContext(http.MethodPost, "/v1/pans/decrypt", request)

		handler.DecryptHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockUseCase.AssertNotCalled(t, "DecryptByHpan")
	})

	t.Run("Error_PanNotFound", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.DecryptRequest{
			Hpan:        testHpan,
			RequestedBy: "fraud-review@example.com",
			Reason:      "chargeback investigation",
		}

		mockUseCase.On(
			"DecryptByHpan",
			mock.Anything,
			testHpan,
			"fraud-review@example.com",
			"chargeback investigation",
		).Return("", panDomain.ErrPanNotFound).Once()

		c, w := createTestContext(http.MethodPost, "/v1/pans/decrypt", request)

		handler.DecryptHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NotContains(t, w.Body.String(), testPan)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_KeyServiceUnavailable", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		request := dto.DecryptRequest{
			Hpan:        testHpan,
			RequestedBy: "fraud-review@example.com",
			Reason:      "chargeback investigation",
		}

		mockUseCase.On(
			"DecryptByHpan",
			mock.Anything,
			testHpan,
			"fraud-review@example.com",
			"chargeback investigation",
		).Return("", cryptoDomain.ErrKeyUnavailable).Once()

		c, w := createTestContext(http.MethodPost, "/v1/pans/decrypt", request)

		handler.DecryptHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "30", w.Header().Get("Retry-After"))
		mockUseCase.AssertExpectations(t)
	})
}
