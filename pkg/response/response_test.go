package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/fastinghub/pulse/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func render(t *testing.T, write func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	write(ctx)

	var envelope Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, envelope
}

func TestSuccessEnvelope(t *testing.T) {
	rec, envelope := render(t, func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"message": "recorded"})
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, envelope.Success)
	require.Nil(t, envelope.Error)
	require.NotNil(t, envelope.Data)
}

func TestSuccessWithMetaCarriesCounters(t *testing.T) {
	meta := &Meta{Page: 2, PerPage: 25, Total: 60, TotalPages: 3}
	rec, envelope := render(t, func(c *gin.Context) {
		SuccessWithMeta(c, http.StatusOK, []string{"fast_beginning", "fast_completed"}, meta)
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, envelope.Meta)
	require.Equal(t, 60, envelope.Meta.Total)
	require.Equal(t, 3, envelope.Meta.TotalPages)
}

func TestErrorUsesAppErrorStatus(t *testing.T) {
	rec, envelope := render(t, func(c *gin.Context) {
		Error(c, appErrors.ErrForbidden)
	})

	require.Equal(t, appErrors.ErrForbidden.StatusCode, rec.Code)
	require.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	require.Equal(t, appErrors.ErrForbidden.Code, envelope.Error.Code)
}

func TestErrorHidesUnknownErrorDetail(t *testing.T) {
	rec, envelope := render(t, func(c *gin.Context) {
		Error(c, errors.New("pq: connection reset by peer"))
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	require.NotContains(t, envelope.Error.Message, "pq:")
}

func TestErrorNilDefaultsToInternal(t *testing.T) {
	rec, envelope := render(t, func(c *gin.Context) {
		Error(c, nil)
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, appErrors.ErrInternalServer.Code, envelope.Error.Code)
}
