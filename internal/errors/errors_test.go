package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(UsernameTaken, "username is already taken").WithField("username")

	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
	assert.NotEmpty(t, err.CorrelationID)
	assert.Equal(t, "USERNAME_TAKEN: username is already taken (username)", err.Error())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(Validation))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(WrongPassword))
	assert.Equal(t, http.StatusNotFound, StatusFor(EmailNotFound))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(RemoteTimeout))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(ErrorCode("???")))
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, New(NotFound, "no series or movie named Heat"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, NotFound, body.Error.Code)
	assert.NotEmpty(t, body.Error.CorrelationID)
	assert.Empty(t, body.Error.Field)
}
