package guidance_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msandnes/invoiceagent/internal/guidance"
	"github.com/msandnes/invoiceagent/internal/model"
)

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, string) (string, error) {
	return "", errors.New("rag unavailable")
}

type staticRetriever struct{ answer string }

func (s staticRetriever) Retrieve(context.Context, string) (string, error) {
	return s.answer, nil
}

func testInvoice() model.Invoice {
	return model.Invoice{
		InvoiceNumber: "INV-1",
		Date:          "2024-01-01",
		VendorName:    "Acme",
		Total:         100,
		Items:         []model.InvoiceItem{{Description: "Widget", Quantity: 2, Price: 50}},
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestGuidanceFallsBackOnRetrievalFailure(t *testing.T) {
	svc := guidance.NewService(failingRetriever{}, nil, 0, quietLogger())
	assert.Equal(t, guidance.Fallback, svc.Guidance(context.Background(), testInvoice()))
}

func TestGuidanceFallsBackWithoutRetriever(t *testing.T) {
	svc := guidance.NewService(nil, nil, 0, quietLogger())
	assert.Equal(t, guidance.Fallback, svc.Guidance(context.Background(), testInvoice()))
}

func TestGuidanceReturnsRetrievedAnswer(t *testing.T) {
	svc := guidance.NewService(staticRetriever{answer: "Debit 6100, credit 2000."}, nil, 0, quietLogger())
	assert.Equal(t, "Debit 6100, credit 2000.", svc.Guidance(context.Background(), testInvoice()))
}

func TestHTTPRetriever(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"per ASC 720, expense as incurred"}`))
	}))
	defer ts.Close()

	r := guidance.NewHTTPRetriever(ts.URL)
	answer, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, "per ASC 720, expense as incurred", answer)
}

func TestHTTPRetrieverNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	r := guidance.NewHTTPRetriever(ts.URL)
	_, err := r.Retrieve(context.Background(), "query")
	assert.Error(t, err)
}
