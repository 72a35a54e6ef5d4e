package risk

// Category is the banded reading of a final score.
type Category string

const (
	CategoryVeryLow  Category = "Very Low"
	CategoryLow      Category = "Low"
	CategoryMedium   Category = "Medium"
	CategoryHigh     Category = "High"
	CategoryVeryHigh Category = "Very High"
)

// Categories lists the bands from lowest to highest.
var Categories = []Category{CategoryVeryLow, CategoryLow, CategoryMedium, CategoryHigh, CategoryVeryHigh}

// Rank is the band's position in Categories, or -1 if unknown.
func (c Category) Rank() int {
	for i, x := range Categories {
		if x == c {
			return i
		}
	}
	return -1
}

// Categorize maps a final score to its band.
func Categorize(score float64) Category {
	switch {
	case score < 25:
		return CategoryVeryLow
	case score < 45:
		return CategoryLow
	case score < 60:
		return CategoryMedium
	case score < 75:
		return CategoryHigh
	default:
		return CategoryVeryHigh
	}
}

// ---------------------------------------------------------------------------
// Composite blend
// ---------------------------------------------------------------------------

const (
	inherentWeight   = 0.75
	mitigationWeight = 0.25
	residualScale    = 4.0
)

// SaturationResidual is the statement-quality value at which the mitigation
// term reaches zero. Above it the term is negative and, for low inherent
// scores, the final clamp makes larger residuals indistinguishable.
const SaturationResidual = 100 / residualScale

// CompositeScorer blends inherent and residual risk.
type CompositeScorer struct{}

// NewCompositeScorer returns the scorer.
func NewCompositeScorer() CompositeScorer { return CompositeScorer{} }

// Raw computes clamp(0.75*inherent + 0.25*(100 - 4*residual), 0, 100)
// without rounding. The mitigation term is not clamped on its own.
func (CompositeScorer) Raw(inherent, residual float64) float64 {
	mitigation := 100 - residual*residualScale
	return Clamp(inherentWeight*inherent+mitigationWeight*mitigation, 0, 100)
}

// Score is Raw rounded to one decimal place for reporting.
func (s CompositeScorer) Score(inherent, residual float64) float64 {
	return Round1(s.Raw(inherent, residual))
}

// Mitigation exposes the unclamped mitigation term for reporting.
func (CompositeScorer) Mitigation(residual float64) float64 {
	return 100 - residual*residualScale
}

// Categorize returns the reported score and the band of the unrounded
// blend, so 24.96 reads Very Low even though it reports as 25.0.
func (s CompositeScorer) Categorize(inherent, residual float64) (float64, Category) {
	raw := s.Raw(inherent, residual)
	return Round1(raw), Categorize(raw)
}
