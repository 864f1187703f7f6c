package stage

import (
	"fmt"
	"strings"
)

// Tier weights added per matching keyword.
const (
	EarlyWeight  = 1
	MiddleWeight = 2
	LateWeight   = 3
)

// Keywords holds the three severity tiers of the keyword heuristic.
type Keywords struct {
	Early  []string `json:"early" yaml:"early" koanf:"early"`
	Middle []string `json:"middle" yaml:"middle" koanf:"middle"`
	Late   []string `json:"late" yaml:"late" koanf:"late"`
}

// Policy is the data that drives the keyword heuristic.
type Policy struct {
	Keywords        Keywords       `json:"keywords" yaml:"keywords" koanf:"keywords"`
	CategoryWeights map[string]int `json:"category_weights" yaml:"category_weights" koanf:"category_weights"`
	// EarlyMax is the highest score still classified early.
	EarlyMax int `json:"early_max" yaml:"early_max" koanf:"early_max"`
	// LateMin is the lowest score classified late.
	LateMin int `json:"late_min" yaml:"late_min" koanf:"late_min"`
}

// DefaultPolicy returns the built-in English keyword table.
func DefaultPolicy() Policy {
	return Policy{
		Keywords: Keywords{
			Early: []string{
				"forgot", "forgetful", "misplaced", "repeated question", "repeating questions",
				"word finding", "lost train of thought", "missed appointment", "confused about the date",
			},
			Middle: []string{
				"wandering", "got lost", "did not recognize", "didn't recognize", "agitation", "agitated",
				"hallucination", "paranoid", "incontinence", "help dressing", "help bathing",
			},
			Late: []string{
				"bedridden", "bedbound", "unable to walk", "unable to speak", "nonverbal",
				"does not recognize family", "difficulty swallowing", "feeding assistance", "hospice",
			},
		},
		CategoryWeights: map[string]int{
			"orientation":    1,
			"disorientation": 2,
			"safety":         2,
			"sleep":          1,
			"behavior":       1,
			"cognitive":      1,
		},
		EarlyMax: 2,
		LateMin:  7,
	}
}

// Validate reports whether the thresholds and weights are usable.
func (p Policy) Validate() error {
	if p.LateMin <= p.EarlyMax {
		return fmt.Errorf("%w: late_min %d must exceed early_max %d", ErrInvalidPolicy, p.LateMin, p.EarlyMax)
	}
	for tag, w := range p.CategoryWeights {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: empty category name", ErrInvalidPolicy)
		}
		if w < 0 {
			return fmt.Errorf("%w: negative weight %d for %q", ErrInvalidPolicy, w, tag)
		}
	}
	return nil
}

// compiled is the lower-cased form of a Policy used during matching.
type compiled struct {
	tiers   []tier
	weights map[string]int
	policy  Policy
}

type tier struct {
	weight   int
	keywords []string
}

func compile(p Policy) compiled {
	c := compiled{
		tiers: []tier{
			{weight: EarlyWeight, keywords: lowerAll(p.Keywords.Early)},
			{weight: MiddleWeight, keywords: lowerAll(p.Keywords.Middle)},
			{weight: LateWeight, keywords: lowerAll(p.Keywords.Late)},
		},
		weights: make(map[string]int, len(p.CategoryWeights)),
		policy:  p,
	}
	for tag, w := range p.CategoryWeights {
		c.weights[strings.ToLower(strings.TrimSpace(tag))] = w
	}
	return c
}

// score returns the heuristic score of one event text and its tags. Each
// keyword counts once per event however often it appears.
func (c compiled) score(text string, tags []string) int {
	text = strings.ToLower(text)
	total := 0
	if text != "" {
		for _, t := range c.tiers {
			for _, kw := range t.keywords {
				if strings.Contains(text, kw) {
					total += t.weight
				}
			}
		}
	}
	for _, tag := range tags {
		total += c.weights[tag]
	}
	return total
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
