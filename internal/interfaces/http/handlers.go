package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/claimform"
	"github.com/garyjia/claim-reconciler/internal/ingestion"
	"github.com/garyjia/claim-reconciler/internal/models"
	"github.com/garyjia/claim-reconciler/internal/service"
	"github.com/garyjia/claim-reconciler/internal/storage"
	"github.com/garyjia/claim-reconciler/pkg/utils"
)

// Multipart field names of POST /api/v1/claims
const (
	FieldReceipts = "receipts"
	FieldExternal = "external"
	FieldFormat   = "format"
)

// ClaimService is what the handlers need from the claim pipeline
type ClaimService interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*service.GenerateResult, error)
	Get(ctx context.Context, id string) (*models.ClaimRun, error)
	List(ctx context.Context, limit, offset int) ([]*models.ClaimRun, error)
	Output(ctx context.Context, id string) ([]byte, string, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims         ClaimService
	header         claimform.HeaderFields
	maxUploadBytes int64
	check          func(ctx context.Context) error
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(claims ClaimService, header claimform.HeaderFields, maxUploadBytes int64, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		claims:         claims,
		header:         header,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Reason    string `json:"reason,omitempty"`
}

// ClaimRunResponse represents a claim run in API responses
type ClaimRunResponse struct {
	ID          string              `json:"id"`
	Format      string              `json:"format"`
	PageCount   int                 `json:"page_count"`
	Summary     models.Summary      `json:"summary"`
	TotalAmount string              `json:"total_amount"`
	Diagnostics []models.Diagnostic `json:"diagnostics,omitempty"`
	DownloadURL string              `json:"download_url"`
	CreatedAt   string              `json:"created_at"`
}

// ListClaimsRequest represents query parameters for listing claim runs
type ListClaimsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	if h.check != nil {
		if err := h.check(c.Request.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			health.Status = "unhealthy"
			health.Reason = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    health,
				Error:   "service unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    health,
	})
}

// CreateClaim handles POST /api/v1/claims
func (h *Handlers) CreateClaim(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		h.logger.Warn("Invalid multipart form", zap.Error(err))
		h.fail(c, http.StatusBadRequest, "expected multipart form data")
		return
	}

	receipts, err := readUploads(form.File[FieldReceipts])
	if err != nil {
		h.fail(c, http.StatusBadRequest, err.Error())
		return
	}
	externals, err := readUploads(form.File[FieldExternal])
	if err != nil {
		h.fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(receipts) == 0 && len(externals) == 0 {
		h.fail(c, http.StatusBadRequest, "no receipt or external files uploaded")
		return
	}

	header, err := h.headerOverride(c)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err.Error())
		return
	}

	req := service.GenerateRequest{
		Receipts:  receipts,
		Externals: externals,
		Format:    utils.SanitizeString(c.PostForm(FieldFormat)),
		Header:    header,
	}

	h.logger.Info("Generating claim",
		zap.Int("receipt_files", len(receipts)),
		zap.Int("external_files", len(externals)),
		zap.String("format", req.Format))

	result, err := h.claims.Generate(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Claim generation failed", zap.Error(err))
		h.fail(c, statusFor(err), err.Error())
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toClaimRunResponse(result.Run),
	})
}

// ListClaims handles GET /api/v1/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	var req ListClaimsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", zap.Error(err))
		h.fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	runs, err := h.claims.List(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.logger.Error("Failed to list claim runs", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "failed to retrieve claim runs")
		return
	}

	responses := make([]ClaimRunResponse, 0, len(runs))
	for _, run := range runs {
		resp := toClaimRunResponse(run)
		resp.Diagnostics = nil
		responses = append(responses, resp)
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// GetClaim handles GET /api/v1/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	id := c.Param("id")

	run, err := h.claims.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("Failed to get claim run", zap.String("id", id), zap.Error(err))
		status := statusFor(err)
		msg := "failed to retrieve claim run"
		if status == http.StatusNotFound {
			msg = "claim run not found"
		}
		h.fail(c, status, msg)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toClaimRunResponse(run),
	})
}

// DownloadClaim handles GET /api/v1/claims/:id/download
func (h *Handlers) DownloadClaim(c *gin.Context) {
	id := c.Param("id")

	content, name, err := h.claims.Output(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("Failed to read claim output", zap.String("id", id), zap.Error(err))
		status := statusFor(err)
		msg := "claim output unavailable"
		if status == http.StatusNotFound {
			msg = "claim run not found"
		}
		h.fail(c, status, msg)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, storage.FileTypeOf(name).ContentType(), content)
}

func (h *Handlers) fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{
		Success: false,
		Error:   msg,
	})
}

// headerOverride merges posted header fields over the configured header.
// It returns nil when the request sets none.
func (h *Handlers) headerOverride(c *gin.Context) (*claimform.HeaderFields, error) {
	header := h.header
	changed := false

	texts := []struct {
		field string
		dst   *string
	}{
		{"employee", &header.Employee},
		{"department", &header.Department},
		{"approver", &header.Approver},
	}
	for _, t := range texts {
		if v, ok := c.GetPostForm(t.field); ok {
			*t.dst = utils.SanitizeString(v)
			changed = true
		}
	}

	dates := []struct {
		field string
		dst   *civil.Date
	}{
		{"period_start", &header.PeriodStart},
		{"period_end", &header.PeriodEnd},
		{"signature_date", &header.SignatureDate},
	}
	for _, d := range dates {
		v, ok := c.GetPostForm(d.field)
		if !ok {
			continue
		}
		v = utils.SanitizeString(v)
		changed = true
		if v == "" {
			*d.dst = civil.Date{}
			continue
		}
		parsed, err := civil.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", d.field, v)
		}
		*d.dst = parsed
	}

	if !changed {
		return nil, nil
	}
	return &header, nil
}

func readUploads(headers []*multipart.FileHeader) ([]ingestion.File, error) {
	files := make([]ingestion.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("cannot read upload %s: %w", fh.Filename, err)
		}
		files = append(files, ingestion.File{
			Name: filepath.Base(utils.SanitizeString(fh.Filename)),
			Data: data,
		})
	}
	return files, nil
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidFormat),
		errors.Is(err, claimform.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrUnsupportedFormat),
		errors.Is(err, ingestion.ErrUnreadable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// toClaimRunResponse converts a run to its API response
func toClaimRunResponse(run *models.ClaimRun) ClaimRunResponse {
	return ClaimRunResponse{
		ID:          run.ID,
		Format:      run.Format,
		PageCount:   run.PageCount,
		Summary:     run.Summary,
		TotalAmount: run.TotalAmount,
		Diagnostics: run.Diagnostics,
		DownloadURL: fmt.Sprintf("/api/v1/claims/%s/download", run.ID),
		CreatedAt:   run.CreatedAt.UTC().Format(time.RFC3339),
	}
}
