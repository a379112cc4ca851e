package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msandnes/invoiceagent/internal/agent"
	"github.com/msandnes/invoiceagent/internal/config"
	"github.com/msandnes/invoiceagent/internal/guidance"
	"github.com/msandnes/invoiceagent/internal/model"
	"github.com/msandnes/invoiceagent/internal/server"
	"github.com/msandnes/invoiceagent/internal/signing"
	"github.com/msandnes/invoiceagent/internal/store"
)

// tinyJPEG carries the JPEG magic bytes so MIME sniffing sees image/jpeg.
var tinyJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0xFF, 0xD9}

type stubExtractor struct {
	invoice *model.Invoice
	err     error
}

func (s *stubExtractor) Extract(context.Context, []byte, string, string) (*model.Invoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	inv := *s.invoice
	return &inv, nil
}

type stubGenerator struct {
	voucher *model.Voucher
	err     error
}

func (s *stubGenerator) Generate(_ context.Context, _ model.Invoice, _ string, voucherID string) (*model.Voucher, error) {
	if s.err != nil {
		return nil, s.err
	}
	v := *s.voucher
	if v.VoucherID == "" {
		v.VoucherID = voucherID
	}
	return &v, nil
}

func sampleInvoice() model.Invoice {
	return model.Invoice{
		InvoiceNumber: "INV-1",
		Date:          "2024-01-01",
		VendorName:    "Acme",
		Total:         100,
		Items:         []model.InvoiceItem{{Description: "Widget", Quantity: 2, Price: 50}},
	}
}

func balancedVoucher() model.Voucher {
	return model.Voucher{
		Date:        "2024-01-01",
		Description: "Acme - Invoice #INV-1",
		Entries: []model.VoucherEntry{
			{AccountName: "Office Supplies", AccountCode: "6100", Debit: 100, GAAPReasoning: "ASC 720-15"},
			{AccountName: "Accounts Payable", AccountCode: "2000", Credit: 100, GAAPReasoning: "ASC 405-20"},
		},
		CreatedAt: "2024-01-01T00:00:00Z",
	}
}

func newTestServer(t *testing.T, extractor *stubExtractor, generator *stubGenerator) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	cfg := &config.Config{
		MaxUploadBytes: 1 << 20,
		SignedURLTTL:   5 * time.Minute,
	}
	registry := agent.NewRegistry(agent.Deps{
		Store:     store.NewMemoryStore(),
		Extractor: extractor,
		Generator: generator,
		Guidance:  guidance.NewService(nil, nil, 0, log),
		Log:       log,
	})
	srv := server.New(cfg, log, registry, signing.NewSigner([]byte("test")), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func multipartUpload(t *testing.T, file []byte, filename, instanceID string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	if instanceID != "" {
		require.NoError(t, mw.WriteField("instanceId", instanceID))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestUploadParsesInvoiceAndLeavesVouchersEmpty(t *testing.T) {
	inv := sampleInvoice()
	ts := newTestServer(t, &stubExtractor{invoice: &inv}, &stubGenerator{voucher: ptr(balancedVoucher())})

	body, contentType := multipartUpload(t, tinyJPEG, "invoice.jpg", "s1")
	resp, err := http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Type string        `json:"type"`
		Data model.Invoice `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, "parsed_invoice", parsed.Type)
	assert.Equal(t, inv, parsed.Data)

	// A parse produces a draft only; the voucher list stays empty.
	var list struct {
		Success  bool            `json:"success"`
		Vouchers []model.Voucher `json:"vouchers"`
	}
	status := getJSON(t, ts.URL+"/api/vouchers?instanceId=s1", &list)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, list.Success)
	assert.Empty(t, list.Vouchers)
}

func TestUploadRejectsNonImage(t *testing.T) {
	ts := newTestServer(t, &stubExtractor{invoice: ptr(sampleInvoice())}, &stubGenerator{})

	body, contentType := multipartUpload(t, []byte("just some text"), "notes.txt", "s1")
	resp, err := http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	ts := newTestServer(t, &stubExtractor{invoice: ptr(sampleInvoice())}, &stubGenerator{})

	body, contentType := multipartUpload(t, nil, "", "s1")
	resp, err := http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadExtractionFailureIsGeneric500(t *testing.T) {
	ts := newTestServer(t, &stubExtractor{err: errors.New("upstream quota exceeded")}, &stubGenerator{})

	body, contentType := multipartUpload(t, tinyJPEG, "invoice.jpg", "s1")
	resp, err := http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotContains(t, out["error"], "quota")
}

func TestVoucherLifecycleOverChannel(t *testing.T) {
	inv := sampleInvoice()
	ts := newTestServer(t, &stubExtractor{invoice: &inv}, &stubGenerator{voucher: ptr(balancedVoucher())})

	// Upload first so the session has a draft.
	body, contentType := multipartUpload(t, tinyJPEG, "invoice.jpg", "s1")
	resp, err := http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/invoice-agent/s1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"generate_voucher"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var event model.VoucherEvent
	require.NoError(t, json.Unmarshal(frame, &event))
	require.Equal(t, model.MsgVoucher, event.Type)
	voucherID := event.Voucher.VoucherID
	require.NotEmpty(t, voucherID)
	assert.True(t, event.Voucher.Totals().IsBalanced)

	var list struct {
		Success  bool            `json:"success"`
		Vouchers []model.Voucher `json:"vouchers"`
	}
	getJSON(t, ts.URL+"/api/vouchers?instanceId=s1", &list)
	require.Len(t, list.Vouchers, 1)

	var single struct {
		Success bool          `json:"success"`
		Voucher model.Voucher `json:"voucher"`
	}
	status := getJSON(t, ts.URL+"/api/vouchers/"+voucherID+"?instanceId=s1", &single)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, voucherID, single.Voucher.VoucherID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/vouchers/"+voucherID+"?instanceId=s1", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	var notFound map[string]string
	status = getJSON(t, ts.URL+"/api/vouchers/"+voucherID+"?instanceId=s1", &notFound)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChannelSurvivesMalformedFrames(t *testing.T) {
	inv := sampleInvoice()
	ts := newTestServer(t, &stubExtractor{invoice: &inv}, &stubGenerator{voucher: ptr(balancedVoucher())})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/invoice-agent/s1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{broken`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"nonsense"}`)))

	// The connection must still be usable afterwards.
	edited := sampleInvoice()
	edited.VendorName = "Globex"
	payload, err := json.Marshal(map[string]any{"type": "edit_invoice", "data": edited})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"generate_voucher"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var event model.VoucherEvent
	require.NoError(t, json.Unmarshal(frame, &event))
	assert.Equal(t, model.MsgVoucher, event.Type)
}

func TestInstanceIsolationOverHTTP(t *testing.T) {
	inv := sampleInvoice()
	ts := newTestServer(t, &stubExtractor{invoice: &inv}, &stubGenerator{voucher: ptr(balancedVoucher())})

	body, contentType := multipartUpload(t, tinyJPEG, "invoice.jpg", "s1")
	resp, err := http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/invoice-agent/s1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"generate_voucher"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	var other struct {
		Success  bool            `json:"success"`
		Vouchers []model.Voucher `json:"vouchers"`
	}
	getJSON(t, ts.URL+"/api/vouchers?instanceId=s2", &other)
	assert.True(t, other.Success)
	assert.Empty(t, other.Vouchers)
}

func TestExportDisabledWithoutObjectStore(t *testing.T) {
	ts := newTestServer(t, &stubExtractor{invoice: ptr(sampleInvoice())}, &stubGenerator{})

	var out map[string]string
	status := getJSON(t, fmt.Sprintf("%s/api/vouchers/VCH-X/export?instanceId=s1", ts.URL), &out)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func ptr[T any](v T) *T { return &v }
