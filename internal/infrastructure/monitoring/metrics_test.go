package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCollection(t *testing.T) {
	before := testutil.ToFloat64(Business.CollectionsTotal.WithLabelValues("success"))

	RecordCollection("success")

	assert.Equal(t, before+1, testutil.ToFloat64(Business.CollectionsTotal.WithLabelValues("success")))
}

func TestRecordAccrualRun(t *testing.T) {
	before := testutil.ToFloat64(Business.AccrualRunsTotal.WithLabelValues("repayment_quote", "success"))

	RecordAccrualRun("repayment_quote", "success", time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(Business.AccrualRunsTotal.WithLabelValues("repayment_quote", "success")))
}

func TestAccrualStatus(t *testing.T) {
	assert.Equal(t, AccrualSuccess, AccrualStatus(nil))
	assert.Equal(t, AccrualError, AccrualStatus(errors.New("invalid loan terms")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTP.RequestsTotal.WithLabelValues("GET", "/loans/{loanID}", "200"))

	RecordHTTPRequest("GET", "/loans/{loanID}", "200", 5*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(HTTP.RequestsTotal.WithLabelValues("GET", "/loans/{loanID}", "200")))
}
