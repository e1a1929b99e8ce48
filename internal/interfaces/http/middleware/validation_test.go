package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationSample struct {
	LeaseID uuid.UUID       `json:"lease_id" binding:"required"`
	Amount  decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Gateway string          `json:"gateway" binding:"required,max=10"`
	Status  string          `form:"status" binding:"omitempty,oneof=OPEN PAID"`
}

func bindSample(t *testing.T, body string) []dto.ValidationDetail {
	t.Helper()
	SetupValidator()

	var details []dto.ValidationDetail
	router := gin.New()
	router.POST("/sample", func(c *gin.Context) {
		var in validationSample
		if err := c.ShouldBindJSON(&in); err != nil {
			details = ValidationDetails(err)
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/sample", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return details
}

func fieldsOf(details []dto.ValidationDetail) map[string]string {
	out := make(map[string]string, len(details))
	for _, d := range details {
		out[d.Field] = d.Message
	}
	return out
}

func TestValidationDetails_UsesJSONNames(t *testing.T) {
	details := bindSample(t, `{"amount": "0", "gateway": "a-very-long-gateway"}`)

	fields := fieldsOf(details)
	require.Len(t, fields, 3)
	assert.Equal(t, "This field is required", fields["lease_id"])
	assert.Equal(t, "This field is required", fields["amount"])
	assert.Equal(t, "Must be at most 10 characters", fields["gateway"])
}

func TestValidationDetails_DecimalComparison(t *testing.T) {
	details := bindSample(t, `{"lease_id": "`+uuid.NewString()+`", "amount": "-5", "gateway": "ACH"}`)

	fields := fieldsOf(details)
	require.Len(t, fields, 1)
	assert.Equal(t, "Must be greater than 0", fields["amount"])

	assert.Empty(t, bindSample(t, `{"lease_id": "`+uuid.NewString()+`", "amount": "12.50", "gateway": "ACH"}`))
}

func TestValidationDetails_NonValidatorError(t *testing.T) {
	assert.Nil(t, ValidationDetails(assert.AnError))
}
