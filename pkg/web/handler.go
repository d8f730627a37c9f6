package web

import (
	"context"
	"errors"
	"github.com/gin-gonic/gin"
	"harnss7/pkg/apis"
	"harnss7/pkg/apis/response"
	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/protocol/s7/value"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
	"net/http"
)

// Collector the part of s7.Collector served over http.
type Collector interface {
	Status() s7.CollectorStatus
	Variables() s7runtime.VariableSlice
	Read(ctx context.Context, address string) (value.Value, error)
	WriteAddress(ctx context.Context, address string, raw interface{}) error
	Write(ctx context.Context, values map[string]interface{}) error
}

var _ Collector = (*s7.Collector)(nil)

type AddressValue struct {
	Address string      `json:"address"`
	Value   interface{} `json:"value"`
}

// WriteRequest either writes one address or configured variables by name.
type WriteRequest struct {
	Address   string                 `json:"address,omitempty"`
	Value     interface{}            `json:"value,omitempty"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

func InstallHandler(group *gin.RouterGroup, collector Collector) {
	group.GET("/connection", getConnection(collector))
	group.GET("/variables", listVariables(collector))
	group.GET("/values", readValue(collector))
	group.PUT("/values", writeValues(collector))
}

func getConnection(collector Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, collector.Status())
	}
}

func listVariables(collector Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, collector.Variables())
	}
}

func readValue(collector Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.Query(apis.Address)
		if len(address) == 0 {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMissingParameter(apis.Address)))
			return
		}
		v, err := collector.Read(c.Request.Context(), address)
		if err != nil {
			klog.V(2).InfoS("Failed to read s7 address", "address", address, "err", err)
			c.JSON(toResponse(address, err))
			return
		}
		c.JSON(http.StatusOK, AddressValue{Address: address, Value: v.Interface()})
	}
}

func writeValues(collector Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request WriteRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			klog.V(2).InfoS("Failed to parse write request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}

		var err error
		target := request.Address
		switch {
		case len(request.Address) != 0 && len(request.Variables) == 0:
			err = collector.WriteAddress(c.Request.Context(), request.Address, request.Value)
		case len(request.Address) == 0 && len(request.Variables) != 0:
			target = "variables"
			err = collector.Write(c.Request.Context(), request.Variables)
		default:
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestBody))
			return
		}
		if err != nil {
			klog.V(2).InfoS("Failed to write s7 values", "target", target, "err", err)
			c.JSON(toResponse(target, err))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// toResponse maps client errors onto coded response errors. The status of an
// aggregate is the status of its first error.
func toResponse(target string, err error) (int, *response.MultiError) {
	errs := []error{err}
	var agg utilerrors.Aggregate
	if errors.As(err, &agg) {
		errs = agg.Errors()
	}
	me := response.NewMultiError()
	for _, e := range errs {
		me.Add(mapError(target, e))
	}
	return me.Status(), me
}

func mapError(target string, err error) error {
	var ie *s7runtime.InvalidAddressError
	var de *s7runtime.DecodeError
	var pe *s7runtime.ProtocolError
	var se *s7runtime.PduSizeExceededError
	switch {
	case errors.As(err, &ie):
		return response.ErrInvalidAddress(target, err)
	case errors.Is(err, s7.ErrUnknownVariable):
		return response.ErrResourceNotFound(err.Error())
	case errors.As(err, &de), errors.As(err, &se), errors.Is(err, s7.ErrMissingValue):
		return response.ErrInvalidValue(target, err)
	case errors.As(err, &pe):
		return response.ErrDeviceRejected(err)
	case errors.Is(err, s7runtime.ErrNotConnected), s7runtime.IsFatal(err), errors.Is(err, context.DeadlineExceeded):
		return response.ErrDeviceUnavailable(target, err)
	}
	return response.ErrInternal(err)
}
