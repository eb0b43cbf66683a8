package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseBodyCanBeReadRepeatedly(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("Content-Type", "application/json")
	rr.WriteHeader(http.StatusBadRequest)
	_, _ = rr.WriteString(`{"error":"validation_error","error_description":"bad","field":"fecha_vencimiento"}`)

	AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	assert.Equal(t, "fecha_vencimiento", UnmarshalErrorResponse(t, rr)["field"])
	assert.NotEmpty(t, ReadBody(t, rr))
}
