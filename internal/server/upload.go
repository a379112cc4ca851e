package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	pdfutil "github.com/msandnes/invoiceagent/internal/pdf"
)

// upload holds the decoded multipart pieces of an invoice submission.
type upload struct {
	data        []byte
	contentType string
	instanceID  string
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024)
	up, err := s.readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	isImage := strings.HasPrefix(up.contentType, "image/")
	isPDF := up.contentType == "application/pdf"
	if !isImage && !isPDF {
		respondError(w, http.StatusBadRequest, "Invalid file")
		return
	}

	var image []byte
	var pdfText string
	if isPDF {
		pdfText, err = pdfutil.ExtractText(up.data)
		if err != nil {
			s.log.WithError(err).Warn("pdf text extraction failed")
			respondError(w, http.StatusBadRequest, "unable to read PDF")
			return
		}
	} else {
		image = up.data
	}

	a := s.registry.Get(up.instanceID)
	invoice, err := a.ParseInvoice(r.Context(), image, up.contentType, pdfText)
	if err != nil {
		s.log.WithError(err).WithField("instance", up.instanceID).Error("invoice parsing failed")
		respondError(w, http.StatusInternalServerError, "invoice parsing failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"type": "parsed_invoice", "data": invoice})
}

// readUpload streams the multipart body, collecting the file part and the
// instanceId field. The file stays in memory: it is bounded by the upload
// limit and the extraction capability needs the raw bytes anyway.
func (s *Server) readUpload(r *http.Request) (*upload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errors.New("expecting multipart form")
	}
	up := &upload{instanceID: defaultInstanceID}
	var haveFile bool
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.New("failed to read upload")
		}
		switch part.FormName() {
		case "file":
			if haveFile {
				part.Close()
				continue
			}
			data, err := readPart(part, s.cfg.MaxUploadBytes)
			part.Close()
			if err != nil {
				return nil, err
			}
			up.data = data
			haveFile = true
		case "instanceId":
			value, err := io.ReadAll(io.LimitReader(part, 256))
			part.Close()
			if err == nil && len(bytes.TrimSpace(value)) > 0 {
				up.instanceID = string(bytes.TrimSpace(value))
			}
		default:
			part.Close()
		}
	}
	if !haveFile {
		return nil, errors.New("missing file part")
	}
	sniff := up.data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	up.contentType = http.DetectContentType(sniff)
	return up, nil
}

func readPart(part io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, limit+1))
	if err != nil {
		return nil, errors.New("failed to read file")
	}
	if n == 0 {
		return nil, errors.New("empty file")
	}
	if n > limit {
		return nil, fmt.Errorf("file exceeds limit (%d bytes)", limit)
	}
	return buf.Bytes(), nil
}
