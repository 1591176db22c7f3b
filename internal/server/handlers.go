package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ginjaninja78/fbr-invoicer/internal/converter"
	"github.com/ginjaninja78/fbr-invoicer/internal/mapping"
	"github.com/ginjaninja78/fbr-invoicer/internal/seller"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
	"github.com/ginjaninja78/fbr-invoicer/internal/validation"
	"github.com/ginjaninja78/fbr-invoicer/internal/xlsxparser"
	"github.com/ginjaninja78/fbr-invoicer/pkg/utils"
)

// =============================================================================
// MAPPING
// =============================================================================

type detectRequest struct {
	Headers []string `json:"headers" binding:"required"`
}

type detectResponse struct {
	Mapping         types.ColumnMapping    `json:"mapping"`
	MissingRequired []types.CanonicalField `json:"missing_required"`
	CanProcess      bool                   `json:"can_process"`
	Suggestions     []mapping.Suggestion   `json:"suggestions,omitempty"`
}

func (s *Server) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, s.log, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	success(c, http.StatusOK, describeMapping(req.Headers), "")
}

func describeMapping(headers []string) detectResponse {
	m := mapping.DetectMapping(headers)
	return detectResponse{
		Mapping:         m,
		MissingRequired: mapping.Missing(m, mapping.RequiredFields),
		CanProcess:      len(mapping.Missing(m, mapping.ProcessingRequired)) == 0,
		Suggestions:     mapping.Suggest(headers, m),
	}
}

// =============================================================================
// BATCHES
// =============================================================================

type batchResponse struct {
	Sheet           string                 `json:"sheet"`
	Mapping         types.ColumnMapping    `json:"mapping"`
	MissingRequired []types.CanonicalField `json:"missing_required"`
	SuccessCount    int                    `json:"success_count"`
	FailureCount    int                    `json:"failure_count"`
	TotalAmount     string                 `json:"total_amount"`
	Errors          []string               `json:"errors,omitempty"`
	Results         []types.RowResult      `json:"results"`
}

func (s *Server) handleBatch(c *gin.Context) {
	sellerID, err := strconv.ParseInt(c.PostForm("seller_id"), 10, 64)
	if err != nil {
		failure(c, s.log, http.StatusBadRequest, "seller_id is required")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		failure(c, s.log, http.StatusBadRequest, "Spreadsheet (.xlsx, .xls, .csv) not found or invalid")
		return
	}
	if !utils.IsInputFile(fh.Filename) {
		failure(c, s.log, http.StatusBadRequest, fmt.Sprintf("Unsupported file extension: %s", filepath.Ext(fh.Filename)))
		return
	}

	profile, ok := s.lookupSeller(c, sellerID)
	if !ok {
		return
	}

	dir, err := os.MkdirTemp("", "invoicer-upload-")
	if err != nil {
		failure(c, s.log, http.StatusInternalServerError, "Could not store upload", err.Error())
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "upload"+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		failure(c, s.log, http.StatusInternalServerError, "Could not store upload", err.Error())
		return
	}

	conv, err := converter.New(profile, converter.Options{MaxConcurrency: s.opts.MaxConcurrency, Now: s.opts.Now})
	if err != nil {
		failure(c, s.log, http.StatusInternalServerError, "Could not prepare converter", err.Error())
		return
	}
	res, err := conv.RunFile(c.Request.Context(), path)
	var mErr *converter.MappingError
	switch {
	case errors.As(err, &mErr):
		failure(c, s.log, http.StatusUnprocessableEntity, err.Error(), fieldKeys(mErr.Missing)...)
		return
	case errors.Is(err, xlsxparser.ErrNoData):
		failure(c, s.log, http.StatusUnprocessableEntity, "No data found in the uploaded file")
		return
	case err != nil:
		failure(c, s.log, http.StatusUnprocessableEntity, "Could not read the uploaded file", err.Error())
		return
	}

	sum := res.Summary
	success(c, http.StatusOK, batchResponse{
		Sheet:           res.SheetName,
		Mapping:         res.Mapping,
		MissingRequired: res.MissingRequired,
		SuccessCount:    sum.SuccessCount,
		FailureCount:    sum.FailureCount,
		TotalAmount:     sum.TotalAmount.StringFixed(2),
		Errors:          sum.Errors,
		Results:         sum.Results,
	}, fmt.Sprintf("Processed %d invoices, %d failed", sum.SuccessCount, sum.FailureCount))
}

func fieldKeys(fields []types.CanonicalField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

// =============================================================================
// SELLERS
// =============================================================================

func (s *Server) handleSellers(c *gin.Context) {
	var (
		list []types.SellerProfile
		err  error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		list, err = s.opts.Sellers.Search(c.Request.Context(), q)
	} else {
		list, err = s.opts.Sellers.List(c.Request.Context())
	}
	if err != nil {
		failure(c, s.log, http.StatusInternalServerError, "Could not load sellers", err.Error())
		return
	}

	out := make([]types.SellerProfile, len(list))
	for i, p := range list {
		out[i] = p.Redacted()
	}
	success(c, http.StatusOK, out, "")
}

func (s *Server) handleSeller(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		failure(c, s.log, http.StatusBadRequest, "Invalid seller id")
		return
	}
	if p, ok := s.lookupSeller(c, id); ok {
		success(c, http.StatusOK, p.Redacted(), "")
	}
}

func (s *Server) lookupSeller(c *gin.Context, id int64) (types.SellerProfile, bool) {
	p, err := s.opts.Sellers.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, seller.ErrNotFound):
		failure(c, s.log, http.StatusNotFound, fmt.Sprintf("Seller %d not found", id))
		return p, false
	case err != nil:
		failure(c, s.log, http.StatusInternalServerError, "Could not load seller", err.Error())
		return p, false
	}
	return p, true
}

// =============================================================================
// SINGLE INVOICE
// =============================================================================

type validateRequest struct {
	SellerID int64         `json:"seller_id" binding:"required"`
	Invoice  types.Invoice `json:"invoice"`
}

type validateResponse struct {
	Warnings   []*validation.ValidationError `json:"warnings,omitempty"`
	StatusCode int                           `json:"status_code"`
	Success    bool                          `json:"success"`
	Response   map[string]any                `json:"response"`
}

func (s *Server) handleValidateInvoice(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, s.log, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	profile, ok := s.lookupSeller(c, req.SellerID)
	if !ok {
		return
	}

	inv := req.Invoice
	inv.ApplySeller(profile)
	if inv.InvoiceType == "" {
		inv.InvoiceType = types.InvoiceTypeSale
	}
	if inv.InvoiceDate == "" {
		inv.InvoiceDate = s.opts.Now().Format("2006-01-02")
	}
	for i := range inv.Items {
		inv.Items[i].Recompute()
	}

	findings := validation.ValidateInvoice(inv)
	if validation.HasErrors(findings) {
		failure(c, s.log, http.StatusUnprocessableEntity, "Invoice failed local validation", validation.Messages(findings)...)
		return
	}
	if strings.TrimSpace(profile.BearerToken) == "" {
		failure(c, s.log, http.StatusUnprocessableEntity, "Seller has no FBR bearer token")
		return
	}

	resp := s.opts.FBR.Validate(c.Request.Context(), profile.BearerToken, inv)
	msg := "Invoice rejected by FBR"
	if resp.Success() {
		msg = "Invoice validated by FBR"
	}
	success(c, http.StatusOK, validateResponse{
		Warnings:   findings,
		StatusCode: resp.StatusCode,
		Success:    resp.Success(),
		Response:   resp.Body,
	}, msg)
}
