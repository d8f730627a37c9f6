package response

import (
	"encoding/json"
	stderrors "errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"testing"
)

func TestMultiErrorJSON(t *testing.T) {
	cause := stderrors.New("s7 connection is not open")
	me := NewMultiError(ErrDeviceUnavailable("plc:102", cause), ErrResourceNotFound("variable speed"))
	data, err := json.Marshal(me)
	require.NoError(t, err)
	assert.JSONEq(t, `{"errors":[
		{"code":10005,"message":"Device plc:102 is unavailable.","detail":"s7 connection is not open"},
		{"code":10004,"message":"Resource variable speed not found."}]}`, string(data))

	out := NewMultiError()
	require.NoError(t, json.Unmarshal(data, out))
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, ErrCodeDeviceUnavailable, out.Errors()[0].(*responseError).GetCode())
	assert.Equal(t, http.StatusServiceUnavailable, me.Status())
	assert.Equal(t, http.StatusInternalServerError, NewMultiError().Status())
}

func TestResponseErrorUnwrap(t *testing.T) {
	cause := stderrors.New("bad")
	err := ErrInvalidValue("speed", cause)
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsResponseError(err))
	assert.False(t, IsResponseError(cause))
	assert.Equal(t, "Invalid value for speed.", err.Message)
	assert.Equal(t, ErrCodeMissingParameter, ErrMissingParameter("address").GetCode())
	assert.Equal(t, http.StatusBadRequest, ErrMissingParameter("address").Status())
	assert.Equal(t, "10007: Invalid value for speed. bad", err.Error())
	assert.Equal(t, "10002: Request body error, set either address and value or variables.", ErrRequestBody.Error())
}
