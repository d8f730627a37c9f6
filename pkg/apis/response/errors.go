package response

import "net/http"

type errorEntry struct {
	message string
	status  int
}

var errors = map[ErrCode]errorEntry{
	ErrCodeMalformedJSON:     {"The JSON you provided was not well-formed or did not validate against our published format.", http.StatusBadRequest},
	ErrCodeRequestBody:       {"Request body error, set either address and value or variables.", http.StatusBadRequest},
	ErrCodeInvalidAddress:    {"Invalid address %s.", http.StatusBadRequest},
	ErrCodeResourceNotFound:  {"Resource %s not found.", http.StatusNotFound},
	ErrCodeDeviceUnavailable: {"Device %s is unavailable.", http.StatusServiceUnavailable},
	ErrCodeDeviceRejected:    {"Device rejected the request.", http.StatusBadGateway},
	ErrCodeInvalidValue:      {"Invalid value for %s.", http.StatusBadRequest},
	ErrCodeMissingParameter:  {"Missing query parameter %s.", http.StatusBadRequest},
	ErrCodeInternal:          {"Internal error.", http.StatusInternalServerError},
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = generateError(ErrCodeMalformedJSON, nil)

var ErrRequestBody = generateError(ErrCodeRequestBody, nil)
