package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/msandnes/invoiceagent/internal/store"
)

func (s *Server) handleVoucher(w http.ResponseWriter, r *http.Request, voucherID string) {
	a := s.registry.Get(instanceID(r))
	switch r.Method {
	case http.MethodGet:
		voucher, err := a.GetVoucher(r.Context(), voucherID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Voucher not found")
				return
			}
			s.log.WithError(err).Error("get voucher")
			respondError(w, http.StatusInternalServerError, "Failed to get voucher")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "voucher": voucher})
	case http.MethodDelete:
		if err := a.DeleteVoucher(r.Context(), voucherID); err != nil {
			s.log.WithError(err).Error("delete voucher")
			respondError(w, http.StatusInternalServerError, "Failed to delete voucher")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleExportURL returns a short-lived signed link to the rendered PDF.
func (s *Server) handleExportURL(w http.ResponseWriter, r *http.Request, voucherID string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.objs == nil {
		respondError(w, http.StatusServiceUnavailable, "exports disabled")
		return
	}
	id := instanceID(r)
	a := s.registry.Get(id)
	voucher, err := a.GetVoucher(r.Context(), voucherID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Voucher not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get voucher")
		return
	}
	if voucher.PDFKey == "" {
		respondError(w, http.StatusNotFound, "export not ready")
		return
	}
	expires := time.Now().Add(s.cfg.SignedURLTTL).Unix()
	signature := s.signer.Sign(id, voucherID, expires)
	q := url.Values{}
	q.Set("instanceId", id)
	q.Set("voucher", voucherID)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", signature)
	respondJSON(w, http.StatusOK, map[string]string{
		"url":     "/api/exports/download?" + q.Encode(),
		"expires": strconv.FormatInt(expires, 10),
	})
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.objs == nil {
		respondError(w, http.StatusServiceUnavailable, "exports disabled")
		return
	}
	q := r.URL.Query()
	id := q.Get("instanceId")
	voucherID := q.Get("voucher")
	expires := q.Get("expires")
	signature := q.Get("signature")
	if id == "" || voucherID == "" || expires == "" || signature == "" {
		respondError(w, http.StatusBadRequest, "missing parameters")
		return
	}
	expiryUnix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expires")
		return
	}
	if time.Unix(expiryUnix, 0).Before(time.Now()) {
		respondError(w, http.StatusUnauthorized, "url expired")
		return
	}
	if !s.signer.Validate(id, voucherID, expires, signature) {
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	voucher, err := s.registry.Get(id).GetVoucher(r.Context(), voucherID)
	if err != nil || voucher.PDFKey == "" {
		respondError(w, http.StatusNotFound, "export not found")
		return
	}
	data, err := s.objs.Download(r.Context(), voucher.PDFKey)
	if err != nil {
		s.log.WithError(err).Error("download voucher pdf")
		respondError(w, http.StatusInternalServerError, "export unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+voucherID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
