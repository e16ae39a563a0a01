// Package tone provides the lexical tone heuristics used to diagnose and cool
// drafts: marker-word diagnostics, word-overlap conductance and a single-pass
// softening rewrite.
package tone

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
)

// Phrases appended by Cool.
const (
	CalmingPhrase   = "We respond with calm empathy and shared respect."
	GroundingPhrase = "Together, we breathe, listen, and adapt."
	softenedWord    = "reflect"
)

var positiveWords = map[string]bool{
	"calm": true, "care": true, "clarity": true, "compassionate": true,
	"cooperate": true, "empathy": true, "gentle": true, "honor": true,
	"kind": true, "peace": true, "respect": true, "support": true,
	"together": true, "trust": true, "understand": true,
}

var negativeWords = map[string]bool{
	"angry": true, "attack": true, "break": true, "cruel": true,
	"fight": true, "harm": true, "hurt": true, "reject": true,
	"shout": true, "threat": true, "toxic": true, "violence": true,
}

var (
	tokenPattern    = regexp.MustCompile(`[a-zA-Z']+`)
	negativePattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(sortedKeys(negativeWords), "|") + `)\b`)
)

// Diagnostics is the tone reading of one text.
type Diagnostics struct {
	Peace2       float64 `json:"peace2_hint"`
	Rasa         float64 `json:"rasa"`
	PositiveHits int     `json:"positive_hits"`
	NegativeHits int     `json:"negative_hits"`
}

// Rewrite is the result of Cool.
type Rewrite struct {
	Text     string      `json:"text"`
	Tone     Diagnostics `json:"tone"`
	Modified bool        `json:"modified"`
}

// Tokens lowercases and splits text into letter/apostrophe runs.
func Tokens(text string) []string {
	matches := tokenPattern.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.ToLower(m)
	}
	return matches
}

// IsNegative reports whether token is an aggression marker.
func IsNegative(token string) bool { return negativeWords[token] }

// Assess scores text by the share of calming and aggressive marker words.
// Empty text reads as neutral: resonance is lifted to 95% of its floor and
// peace to 0.95.
func Assess(text string, cfg floors.Config) Diagnostics {
	tokens := Tokens(text)
	pos := count(tokens, positiveWords)
	neg := count(tokens, negativeWords)
	length := float64(max(len(tokens), 1))

	compassion := float64(pos) / length
	tension := float64(neg) / length

	d := Diagnostics{
		Rasa:         clamp(0.7+compassion*1.5-tension*0.6, 0, 1.2),
		Peace2:       clamp(0.95+compassion*1.1-tension*0.9, 0, 1.5),
		PositiveHits: pos,
		NegativeHits: neg,
	}
	if len(tokens) == 0 {
		d.Rasa = math.Max(d.Rasa, cfg.Get(floors.Rasa, 0.85)*0.95)
		d.Peace2 = math.Max(d.Peace2, 0.95)
	}
	return d
}

// Conductance approximates κᵣ between two texts from vocabulary overlap and
// shared calming intent, penalized by aggression on either side. The result is
// in [0, 1.5]; 0.8 when either text has no words.
func Conductance(a, b string) float64 {
	tokensA, tokensB := Tokens(a), Tokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.8
	}

	uniqueA, uniqueB := set(tokensA), set(tokensB)
	shared := 0
	sharedPositive := 0
	for t := range uniqueA {
		if uniqueB[t] {
			shared++
			if positiveWords[t] {
				sharedPositive++
			}
		}
	}
	total := len(uniqueA) + len(uniqueB) - shared

	overlap := float64(shared) / float64(total)
	alignment := 0.0
	if shared > 0 {
		alignment = float64(sharedPositive) / float64(shared)
	}
	aggression := 0.35 * float64(count(tokensA, negativeWords)+count(tokensB, negativeWords))

	return clamp(0.85+overlap*0.5+alignment*0.6-aggression, 0, 1.5)
}

// Cool makes one softening pass aimed at targetPeace (never below the
// configured peace2 floor). Aggression markers become "reflect" and a calming
// sentence is appended, plus a grounding sentence if that is still short of
// the target. A rewrite that reads worse than the original is discarded.
func Cool(text string, targetPeace float64, cfg floors.Config) Rewrite {
	baseline := Assess(text, cfg)
	desired := math.Max(targetPeace, cfg.Get(floors.Peace2, 1.0))

	if baseline.Peace2 >= desired {
		return Rewrite{Text: text, Tone: baseline}
	}

	softened := negativePattern.ReplaceAllString(text, softenedWord)
	softened = joinSentence(softened, CalmingPhrase)
	improved := Assess(softened, cfg)

	if improved.Peace2 < baseline.Peace2 {
		return Rewrite{Text: text, Tone: baseline}
	}

	final := softened
	if improved.Peace2 < desired {
		final = joinSentence(final, GroundingPhrase)
		improved = Assess(final, cfg)
	}
	return Rewrite{Text: final, Tone: improved, Modified: final != text}
}

func joinSentence(text, sentence string) string {
	return text + " " + sentence
}

func count(tokens []string, markers map[string]bool) int {
	n := 0
	for _, t := range tokens {
		if markers[t] {
			n++
		}
	}
	return n
}

func set(tokens []string) map[string]bool {
	out := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		out[t] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
