package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Assessor scores companies.
type Assessor interface {
	Assess(ctx context.Context, req assessment.Request) (assessment.Report, error)
	AssessBatch(ctx context.Context, reqs []assessment.Request) (assessment.BatchResult, error)
}

// Submitter queues an assessment for the worker and returns its request id.
type Submitter interface {
	Submit(ctx context.Context, req assessment.Request) (string, error)
}

// AssessmentHandler serves the assessment endpoints.
type AssessmentHandler struct {
	assessor  Assessor
	submitter Submitter
	logger    logging.Logger
}

// NewAssessmentHandler creates the handler. submitter may be nil when the
// event stream is disabled, in which case the async endpoint answers 403.
func NewAssessmentHandler(assessor Assessor, submitter Submitter, logger logging.Logger) *AssessmentHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AssessmentHandler{assessor: assessor, submitter: submitter, logger: logger.Named("assessment_handler")}
}

// Create handles POST /api/v1/assessments.
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req assessment.Request
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	h.assess(c, req)
}

// Query handles GET /api/v1/assess. countries and industries accept comma
// separated lists.
func (h *AssessmentHandler) Query(c *gin.Context) {
	req := assessment.Request{
		CompanyName:        c.Query("company"),
		CountryHint:        c.Query("country"),
		IndustryHint:       c.Query("industry"),
		OperatingCountries: splitList(c.Query("countries")),
		Industries:         splitList(c.Query("industries")),
		BusinessModel:      c.Query("business_model"),
	}
	h.assess(c, req)
}

func (h *AssessmentHandler) assess(c *gin.Context, req assessment.Request) {
	rep, err := h.assessor.Assess(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rep)
}

// BatchRequest is the body of POST /api/v1/assessments/batch.
type BatchRequest struct {
	Items []assessment.Request `json:"items"`
}

// BatchItemResponse is one entry of a batch response.
type BatchItemResponse struct {
	Index   int                `json:"index"`
	Success bool               `json:"success"`
	Report  *assessment.Report `json:"report,omitempty"`
	Error   *ErrorBody         `json:"error,omitempty"`
}

// BatchResponse is the data of a batch response.
type BatchResponse struct {
	Items     []BatchItemResponse `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// Batch handles POST /api/v1/assessments/batch. Per-item failures are
// reported inline; the request itself fails only when the batch is empty
// or too large.
func (h *AssessmentHandler) Batch(c *gin.Context) {
	var body BatchRequest
	if err := bindJSON(c, &body); err != nil {
		respondError(c, err)
		return
	}
	res, err := h.assessor.AssessBatch(c.Request.Context(), body.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	out := BatchResponse{Items: make([]BatchItemResponse, len(res.Items)), Succeeded: res.Succeeded, Failed: res.Failed}
	for i, it := range res.Items {
		item := BatchItemResponse{Index: it.Index, Report: it.Report, Success: it.Error == nil}
		if it.Error != nil {
			_, item.Error = errorBody(it.Error)
		}
		out.Items[i] = item
	}
	respond(c, http.StatusOK, out)
}

// AsyncAccepted is the data of a 202 from the async endpoint.
type AsyncAccepted struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// Async handles POST /api/v1/assessments/async.
func (h *AssessmentHandler) Async(c *gin.Context) {
	if h.submitter == nil {
		respondError(c, errors.New(errors.ErrCodeFeatureDisabled, "asynchronous assessment requires kafka"))
		return
	}
	var req assessment.Request
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	id, err := h.submitter.Submit(c.Request.Context(), req)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeAssessmentInvalid) {
			h.logger.Error("failed to queue assessment", logging.String("company", req.CompanyName), logging.Err(err))
		}
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, AsyncAccepted{RequestID: id, Status: "queued"})
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
