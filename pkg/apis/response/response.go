package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

type responseError struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
	Detail  string  `json:"detail,omitempty"`
	Err     error   `json:"-"`
	status  int
}

func (re *responseError) Error() string {
	if re == nil {
		return ""
	}
	if len(re.Detail) == 0 {
		return fmt.Sprintf("%d: %s", re.Code, re.Message)
	}
	return fmt.Sprintf("%d: %s %s", re.Code, re.Message, re.Detail)
}

func (re *responseError) GetCode() ErrCode {
	if re == nil {
		return 0
	}
	return re.Code
}

// Status http status the error is answered with.
func (re *responseError) Status() int {
	if re == nil || re.status == 0 {
		return http.StatusInternalServerError
	}
	return re.status
}

func (re *responseError) Unwrap() error {
	return re.Err
}

func IsResponseError(err error) bool {
	_, ok := err.(*responseError)
	return ok
}

// MultiError contains multiple errors and implements the error interface. Its
// zero value is ready to use. All its methods are goroutine safe.
type MultiError struct {
	mtx    sync.Mutex
	errors []error
}

func NewMultiError(err ...error) *MultiError {
	return &MultiError{
		errors: err,
	}
}

// Add adds an error to the MultiError.
func (e *MultiError) Add(err ...error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	e.errors = append(e.errors, err...)
}

// Len returns the number of errors added to the MultiError.
func (e *MultiError) Len() int {
	if e == nil {
		return 0
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()

	return len(e.errors)
}

// Errors returns a copy of the added errors.
func (e *MultiError) Errors() []error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	return append(make([]error, 0, len(e.errors)), e.errors...)
}

// Status the status of the first response error, 500 when there is none.
func (e *MultiError) Status() int {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	for _, err := range e.errors {
		if re, ok := err.(*responseError); ok {
			return re.Status()
		}
	}
	return http.StatusInternalServerError
}

func (e *MultiError) MarshalJSON() ([]byte, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	return json.Marshal(struct {
		Errors []error `json:"errors"`
	}{
		Errors: e.errors,
	})
}

func (e *MultiError) UnmarshalJSON(bytes []byte) error {
	errs := struct {
		Errors []*responseError `json:"errors"`
	}{}
	if err := json.Unmarshal(bytes, &errs); err != nil {
		return err
	}
	for _, err := range errs.Errors {
		e.Add(err)
	}
	return nil
}

func (e *MultiError) Error() string {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	es := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		es = append(es, err.Error())
	}
	return strings.Join(es, "; ")
}

func generateError(code ErrCode, err error, s ...interface{}) *responseError {
	re := &responseError{
		Code:    code,
		Message: fmt.Sprintf(errors[code].message, s...),
		Err:     err,
		status:  errors[code].status,
	}
	if err != nil {
		re.Detail = err.Error()
	}
	return re
}

func ErrInvalidAddress(address string, err error) *responseError {
	return generateError(ErrCodeInvalidAddress, err, address)
}

func ErrResourceNotFound(resource string) *responseError {
	return generateError(ErrCodeResourceNotFound, nil, resource)
}

func ErrDeviceUnavailable(address string, err error) *responseError {
	return generateError(ErrCodeDeviceUnavailable, err, address)
}

func ErrDeviceRejected(err error) *responseError {
	return generateError(ErrCodeDeviceRejected, err)
}

func ErrInvalidValue(target string, err error) *responseError {
	return generateError(ErrCodeInvalidValue, err, target)
}

func ErrMissingParameter(name string) *responseError {
	return generateError(ErrCodeMissingParameter, nil, name)
}

func ErrInternal(err error) *responseError {
	return generateError(ErrCodeInternal, err)
}
