package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/reference"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// ReferenceHandler exposes the reference tables and the registry matcher
// read-only.
type ReferenceHandler struct {
	store   *reference.Store
	matcher *registry.Matcher
}

// NewReferenceHandler creates the handler.
func NewReferenceHandler(store *reference.Store, matcher *registry.Matcher) *ReferenceHandler {
	return &ReferenceHandler{store: store, matcher: matcher}
}

// CountryResponse is the data of a country lookup.
type CountryResponse struct {
	Input     string            `json:"input"`
	Canonical string            `json:"canonical"`
	Country   reference.Country `json:"country"`
	Missing   []string          `json:"missing_indicators,omitempty"`
}

// Country handles GET /api/v1/reference/countries/:name.
func (h *ReferenceHandler) Country(c *gin.Context) {
	name := c.Param("name")
	country, ok := h.store.LookupCountry(name)
	if !ok {
		respondError(c, errors.New(errors.ErrCodeCountryNotFound, "country not found in reference data").WithDetail(name))
		return
	}
	respond(c, http.StatusOK, CountryResponse{
		Input:     name,
		Canonical: h.store.Normalizer().Normalize(name),
		Country:   country,
		Missing:   country.MissingIndicators(),
	})
}

// Countries handles GET /api/v1/reference/countries.
func (h *ReferenceHandler) Countries(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"countries": h.store.Countries()})
}

// IndustryMatch is one industry in a lookup response.
type IndustryMatch struct {
	reference.Industry
	RiskScore float64 `json:"risk_score"`
}

// Industries handles GET /api/v1/reference/industries. Without q it lists
// the table; with q it returns every fuzzy match, the selected one first.
func (h *ReferenceHandler) Industries(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respond(c, http.StatusOK, gin.H{"industries": h.store.Industries()})
		return
	}
	matches := h.store.IndustryMatches(q)
	if len(matches) == 0 {
		respondError(c, errors.New(errors.ErrCodeIndustryNotFound, "no industry matches the query").WithDetail(q))
		return
	}
	out := make([]IndustryMatch, len(matches))
	for i, ind := range matches {
		out[i] = IndustryMatch{Industry: ind, RiskScore: ind.RiskScore()}
	}
	respond(c, http.StatusOK, gin.H{"query": q, "matches": out})
}

// RegistryMatchResponse is the data of a registry match preview.
type RegistryMatchResponse struct {
	Company    string           `json:"company"`
	Folded     string           `json:"folded"`
	Best       *registry.Match  `json:"best,omitempty"`
	Candidates []registry.Match `json:"candidates"`
}

// RegistryMatch handles GET /api/v1/registries/match. It reports the match
// the residual calculator would use plus the first hit in each registry.
func (h *ReferenceHandler) RegistryMatch(c *gin.Context) {
	company := strings.TrimSpace(c.Query("company"))
	if company == "" {
		respondError(c, errors.New(errors.ErrCodeBadRequest, "company query parameter is required"))
		return
	}
	resp := RegistryMatchResponse{
		Company:    company,
		Folded:     registry.FoldName(company),
		Candidates: h.matcher.MatchAll(company),
	}
	if resp.Candidates == nil {
		resp.Candidates = []registry.Match{}
	}
	if m, ok := h.matcher.Match(company); ok {
		resp.Best = &m
	}
	respond(c, http.StatusOK, resp)
}
