package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/verisum/internal/model"
)

// Per-source points; higher means more likely misinformation
const (
	pointsFactCheckFalse       = 95
	pointsFactCheckMostlyFalse = 70
	pointsFactCheckTrue        = 10
	pointsFactCheckOther       = 50

	pointsEncyclopediaConsistent   = 20
	pointsEncyclopediaInconsistent = 60

	pointsDomainUnreliable = 70
	pointsDomainSatire     = 50
	pointsDomainMixed      = 40
	pointsDomainReliable   = 10
	pointsDomainUnknown    = 30

	// DefaultConfidence is reported when no source produced evidence
	DefaultConfidence = 50

	unreliableThreshold = 60
	misleadingThreshold = 50

	reasonMaxLength = 50
	reasonMaxWords  = 7
)

// Scorer turns an evidence bundle into a confidence, verdict and reason
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Assess scores a bundle and records which verdict rule fired
func (s *Scorer) Assess(bundle model.EvidenceBundle) model.Assessment {
	signals := Signals(bundle)
	confidence := average(signals)
	verdict, rule := determine(bundle, confidence)

	return model.Assessment{
		Confidence: confidence,
		Verdict:    verdict,
		Rule:       rule,
		Signals:    signals,
	}
}

// AggregateConfidence averages the points of every present source, 50 when none are present
func AggregateConfidence(bundle model.EvidenceBundle) int {
	return average(Signals(bundle))
}

// DetermineVerdict applies the verdict rules in priority order
func DetermineVerdict(bundle model.EvidenceBundle, confidence int) model.Verdict {
	verdict, _ := determine(bundle, confidence)
	return verdict
}

// Signals lists the point contribution of each present source
func Signals(bundle model.EvidenceBundle) []model.Signal {
	var signals []model.Signal

	if bundle.HasFactCheck() {
		points := factCheckPoints(bundle.FactCheck.Rating)
		signals = append(signals, model.Signal{
			Type:        model.SignalFactCheck,
			Points:      points,
			Description: fmt.Sprintf("Fact-check rating %q", bundle.FactCheck.Rating),
			Data: map[string]interface{}{
				"rating":    bundle.FactCheck.Rating,
				"publisher": bundle.FactCheck.Publisher,
			},
		})
	}

	if e := bundle.Encyclopedia; e != nil {
		points := pointsEncyclopediaInconsistent
		desc := "Not supported by encyclopedia"
		if e.Consistent {
			points = pointsEncyclopediaConsistent
			desc = "Consistent with encyclopedia"
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalEncyclopedia,
			Points:      points,
			Description: desc,
			Data: map[string]interface{}{
				"overlap": e.Overlap,
				"sources": len(e.Sources),
			},
		})
	}

	if d := bundle.Domain; d != nil {
		signals = append(signals, model.Signal{
			Type:        model.SignalDomain,
			Points:      domainPoints(d.Category),
			Description: fmt.Sprintf("Domain %s rated %s", d.Domain, d.Category),
			Data: map[string]interface{}{
				"category": string(d.Category),
				"score":    d.Score,
			},
		})
	}

	if a := bundle.Analysis; a != nil {
		signals = append(signals, model.Signal{
			Type:        model.SignalAnalysis,
			Points:      a.Confidence,
			Description: fmt.Sprintf("Analysis verdict %s", a.Verdict),
			Data: map[string]interface{}{
				"provider": a.Provider,
			},
		})
	}

	return signals
}

func average(signals []model.Signal) int {
	if len(signals) == 0 {
		return DefaultConfidence
	}
	total := 0
	for _, s := range signals {
		total += s.Points
	}
	return int(math.Round(float64(total) / float64(len(signals))))
}

// factCheckPoints classifies a textual rating. "mostly false" and "half true"
// are checked before the plain false bucket they would otherwise fall into.
func factCheckPoints(rating string) int {
	r := strings.ToLower(rating)
	switch {
	case containsAny(r, "mostly false", "half true"):
		return pointsFactCheckMostlyFalse
	case containsAny(r, "false", "misleading", "pants on fire"):
		return pointsFactCheckFalse
	case containsAny(r, "true", "correct"):
		return pointsFactCheckTrue
	default:
		return pointsFactCheckOther
	}
}

func domainPoints(category model.DomainCategory) int {
	switch category {
	case model.DomainUnreliable:
		return pointsDomainUnreliable
	case model.DomainSatire:
		return pointsDomainSatire
	case model.DomainMixed:
		return pointsDomainMixed
	case model.DomainReliable:
		return pointsDomainReliable
	default:
		return pointsDomainUnknown
	}
}

// determine returns the first matching verdict and the name of its rule
func determine(bundle model.EvidenceBundle, confidence int) (model.Verdict, string) {
	if bundle.HasFactCheck() {
		r := strings.ToLower(bundle.FactCheck.Rating)
		switch {
		case containsAny(r, "false", "pants on fire"):
			return model.VerdictFalse, "fact_check_false"
		case containsAny(r, "misleading", "mostly false", "half true"):
			return model.VerdictMisleading, "fact_check_misleading"
		case containsAny(r, "true", "correct", "mostly true"):
			return model.VerdictTrue, "fact_check_true"
		}
	}

	if d := bundle.Domain; d != nil {
		if d.Category == model.DomainUnreliable && confidence > unreliableThreshold {
			return model.VerdictFalse, "unreliable_domain"
		}
		if d.Category == model.DomainSatire {
			return model.VerdictMisleading, "satire_domain"
		}
	}

	if e := bundle.Encyclopedia; e != nil && !e.Consistent && confidence > misleadingThreshold {
		return model.VerdictMisleading, "encyclopedia_inconsistent"
	}

	if a := bundle.Analysis; a != nil {
		return a.Verdict, "analysis"
	}

	return model.VerdictUnverified, "default"
}

// ShortReason picks the one-line explanation stored with a claim
func ShortReason(bundle model.EvidenceBundle, verdict model.Verdict, userReason string) string {
	if userReason != "" && len(userReason) <= reasonMaxLength {
		return firstWords(userReason, reasonMaxWords)
	}

	if bundle.HasFactCheck() {
		if bundle.FactCheck.Rating != "" {
			return bundle.FactCheck.Rating
		}
		return "Fact-check flagged"
	}

	if d := bundle.Domain; d != nil {
		switch d.Category {
		case model.DomainUnreliable:
			return "Unreliable source"
		case model.DomainSatire:
			return "Satire content"
		}
	}

	if e := bundle.Encyclopedia; e != nil && !e.Consistent {
		return "Contradicts verified sources"
	}

	if a := bundle.Analysis; a != nil && a.Reasoning != "" {
		return firstWords(a.Reasoning, reasonMaxWords)
	}

	switch verdict {
	case model.VerdictFalse:
		return "Likely false information"
	case model.VerdictMisleading:
		return "Potentially misleading content"
	default:
		return "Unverified claim"
	}
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
