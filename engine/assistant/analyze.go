package assistant

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	prosHeadings = []string{"pros", "advantages", "benefits", "strengths"}
	consHeadings = []string{"cons", "disadvantages", "drawbacks", "limitations"}

	positiveWords = compileWords("excellent", "great", "good", "reliable", "recommend", "impressive", "best")
	negativeWords = compileWords("poor", "bad", "avoid", "issue", "problem", "disappointing", "worst")

	bulletRe = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s+(.+?)\s*$`)
	ratingRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:out of|/)\s*5\b`)
)

func compileWords(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

// AnalyzeReply extracts pros, cons, keyword sentiment and an "x out of 5"
// rating from free text. Sentiment is always set; an empty text counts as
// one neutral hit.
func AnalyzeReply(text string) Analysis {
	a := Analysis{Sentiment: &Sentiment{}}
	if strings.TrimSpace(text) == "" {
		a.Sentiment.Neutral = 1
		return a
	}

	lines := strings.Split(text, "\n")
	a.CommonPros = bulletsUnder(lines, prosHeadings)
	a.CommonCons = bulletsUnder(lines, consHeadings)

	for _, re := range positiveWords {
		if re.MatchString(text) {
			a.Sentiment.Positive++
		}
	}
	for _, re := range negativeWords {
		if re.MatchString(text) {
			a.Sentiment.Negative++
		}
	}
	if a.Sentiment.Positive == 0 && a.Sentiment.Negative == 0 {
		a.Sentiment.Neutral = 1
	}

	if m := ratingRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 5 {
			a.AverageRating = &v
		}
	}
	return a
}

// bulletsUnder collects the bullet lines following the first heading line
// that names one of headings. Blank lines right after the heading are
// skipped; the list ends at the first non-bullet line.
func bulletsUnder(lines []string, headings []string) []string {
	for i, line := range lines {
		if !isHeading(line, headings) {
			continue
		}
		var out []string
		for _, next := range lines[i+1:] {
			if strings.TrimSpace(next) == "" {
				if len(out) == 0 {
					continue
				}
				break
			}
			m := bulletRe.FindStringSubmatch(next)
			if m == nil {
				break
			}
			if item := strings.Trim(m[1], "* "); item != "" {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// isHeading matches lines like "Pros:", "**Advantages**" or "### Cons of the Civic:".
func isHeading(line string, headings []string) bool {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(line), "*#_ "))
	for _, h := range headings {
		if s == h || s == h+":" {
			return true
		}
		if strings.HasPrefix(s, h+" ") && strings.HasSuffix(s, ":") {
			return true
		}
	}
	return false
}
