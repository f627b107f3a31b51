// Package transcript performs lightweight lexical analysis of therapy
// session transcripts loaded in the UI. It is deliberately model-free so
// loaded-session questions keep working when the LLM budget is exhausted.
package transcript

import (
	"sort"
	"strings"
)

const wordPunctuation = `.,!?;:"()[]`

// Stats summarizes the raw size of a transcript.
type Stats struct {
	TotalCharacters    int    `json:"total_characters"`
	TotalWords         int    `json:"total_words"`
	EstimatedSentences int    `json:"estimated_sentences"`
	ClientName         string `json:"client_name,omitempty"`
}

// Keyword is a frequent term with its occurrence count.
type Keyword struct {
	Word      string `json:"word"`
	Frequency int    `json:"frequency"`
}

// QuestionMatch holds sentences relevant to a practitioner question.
type QuestionMatch struct {
	Question        string   `json:"question"`
	RelevantContent []string `json:"relevant_content"`
	FoundMatches    int      `json:"found_matches"`
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"i": {}, "you": {}, "we": {}, "they": {}, "he": {}, "she": {}, "it": {},
	"that": {}, "this": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "have": {}, "has": {}, "had": {}, "do": {},
	"does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
}

// Describe computes the basic size statistics of a transcript.
func Describe(content string) Stats {
	return Stats{
		TotalCharacters:    len([]rune(content)),
		TotalWords:         len(strings.Fields(content)),
		EstimatedSentences: len(sentences(content)),
	}
}

// Keywords extracts the most frequent meaningful terms, stopwords and short
// tokens removed. Ties keep first-appearance order.
func Keywords(content string, limit int) []Keyword {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)

	for _, word := range strings.Fields(content) {
		lower := strings.ToLower(word)
		if _, skip := stopwords[lower]; skip {
			continue
		}
		if len([]rune(word)) <= 2 {
			continue
		}
		term := strings.Trim(lower, wordPunctuation)
		if term == "" {
			continue
		}
		if _, seen := counts[term]; !seen {
			firstSeen[term] = len(firstSeen)
		}
		counts[term]++
	}

	keywords := make([]Keyword, 0, len(counts))
	for term, freq := range counts {
		keywords = append(keywords, Keyword{Word: term, Frequency: freq})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Frequency != keywords[j].Frequency {
			return keywords[i].Frequency > keywords[j].Frequency
		}
		return firstSeen[keywords[i].Word] < firstSeen[keywords[j].Word]
	})

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

// Themes picks recurring terms from a keyword list as candidate themes.
// Single occurrences are noise, not themes.
func Themes(keywords []Keyword, limit int) []string {
	themes := make([]string, 0, limit)
	for _, kw := range keywords {
		if len(themes) >= limit {
			break
		}
		if kw.Frequency > 1 {
			themes = append(themes, kw.Word)
		}
	}
	return themes
}

// Summarize produces a bounded extract: the opening and closing of long
// transcripts, or the full text when it is already short.
func Summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= 200 {
		return content
	}

	parts := []string{
		"Session beginning: " + string(runes[:100]) + "...",
		"Session ending: ..." + string(runes[len(runes)-100:]),
	}
	return strings.Join(parts, " ")
}

// AnswerQuestion scans the opening sentences of a transcript for ones that
// mention the question's terms. Only the first 20 sentences are searched and
// at most 5 are returned.
func AnswerQuestion(content, question string) QuestionMatch {
	var questionWords []string
	for _, word := range strings.Fields(strings.ToLower(question)) {
		if len([]rune(word)) <= 2 {
			continue
		}
		if term := strings.Trim(word, wordPunctuation); term != "" {
			questionWords = append(questionWords, term)
		}
	}

	var relevant []string
	scanned := sentences(content)
	if len(scanned) > 20 {
		scanned = scanned[:20]
	}
	for _, sentence := range scanned {
		lower := strings.ToLower(sentence)
		for _, qword := range questionWords {
			if strings.Contains(lower, qword) {
				relevant = append(relevant, sentence)
				break
			}
		}
	}

	match := QuestionMatch{Question: question, FoundMatches: len(relevant)}
	if len(relevant) > 5 {
		relevant = relevant[:5]
	}
	match.RelevantContent = relevant
	return match
}

func sentences(content string) []string {
	var out []string
	for _, part := range strings.Split(content, ".") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
