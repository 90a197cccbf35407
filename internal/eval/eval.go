// Package eval scores the retrieval engine against a curated F1
// question set. Each question carries keywords its grounded answer is
// expected to mention; keyword coverage plus the engine's own latency
// metrics give a cheap regression signal after re-ingestion or a model
// change.
package eval

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pitlane-dev/pitwall/internal/rag"
)

// answerExcerptLimit caps how much of each answer is echoed per result.
const answerExcerptLimit = 300

// Question is one evaluation case: a question and the keywords a
// correct answer is expected to contain.
type Question struct {
	Question string
	Keywords []string
	Category string
}

// DefaultDataset covers the regulation-change and new-team topics the
// knowledge base is seeded with.
var DefaultDataset = []Question{
	{
		Question: "What major regulation changes are coming in 2026?",
		Keywords: []string{"power unit", "active aerodynamics", "2026"},
		Category: "regulations",
	},
	{
		Question: "Is DRS being removed from Formula 1?",
		Keywords: []string{"drs", "2026", "active aero"},
		Category: "technical",
	},
	{
		Question: "Which new teams are joining the F1 grid?",
		Keywords: []string{"cadillac", "audi"},
		Category: "teams",
	},
	{
		Question: "What is Audi's involvement in F1 from 2026?",
		Keywords: []string{"audi", "sauber", "2026"},
		Category: "teams",
	},
}

// QuestionResult is the outcome for a single evaluation question.
type QuestionResult struct {
	Question      string
	Category      string
	AnswerExcerpt string
	KeywordScore  float64
	SourcesFound  int
	AvgScore      float64
	Retrieval     time.Duration
	Generation    time.Duration
	Total         time.Duration
	Success       bool
	Err           string
}

// Report aggregates a full evaluation run.
type Report struct {
	TotalQuestions  int
	Successful      int
	Failed          int
	AvgKeywordScore float64
	AvgRetrieval    time.Duration
	AvgGeneration   time.Duration
	AvgSources      float64
	Results         []QuestionResult
}

// Asker answers one question. Satisfied by *rag.Engine.
type Asker interface {
	Query(ctx context.Context, req rag.Request) rag.Answer
}

// Runner drives the dataset through an Asker in grounded mode.
type Runner struct {
	asker   Asker
	dataset []Question
	logger  *slog.Logger
}

// NewRunner creates a Runner. A nil dataset selects DefaultDataset.
func NewRunner(asker Asker, dataset []Question, logger *slog.Logger) *Runner {
	if dataset == nil {
		dataset = DefaultDataset
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{asker: asker, dataset: dataset, logger: logger}
}

// Run asks every dataset question in grounded mode and aggregates the
// scores. A failed answer is recorded and scored like any other; the
// run itself never fails.
func (r *Runner) Run(ctx context.Context) Report {
	report := Report{
		TotalQuestions: len(r.dataset),
		Results:        make([]QuestionResult, 0, len(r.dataset)),
	}

	var totalKeyword, totalSources float64
	var totalRetrieval, totalGeneration time.Duration

	for _, q := range r.dataset {
		answer := r.asker.Query(ctx, rag.Request{Question: q.Question, Mode: rag.ModeRAG})

		result := QuestionResult{
			Question:      q.Question,
			Category:      q.Category,
			AnswerExcerpt: excerpt(answer.Text),
			KeywordScore:  keywordScore(answer.Text, q.Keywords),
			SourcesFound:  len(answer.Sources),
			AvgScore:      answer.Metrics.AvgScore,
			Retrieval:     answer.Metrics.RetrievalLatency,
			Generation:    answer.Metrics.GenerationLatency,
			Total:         answer.Metrics.TotalLatency,
			Success:       answer.Success,
			Err:           answer.Err,
		}
		report.Results = append(report.Results, result)

		if result.Success {
			report.Successful++
		} else {
			report.Failed++
			r.logger.Warn("evaluation question failed",
				"question", q.Question, "error", answer.Err)
		}

		totalKeyword += result.KeywordScore
		totalSources += float64(result.SourcesFound)
		totalRetrieval += result.Retrieval
		totalGeneration += result.Generation
	}

	if n := len(r.dataset); n > 0 {
		report.AvgKeywordScore = round3(totalKeyword / float64(n))
		report.AvgSources = round3(totalSources / float64(n))
		report.AvgRetrieval = totalRetrieval / time.Duration(n)
		report.AvgGeneration = totalGeneration / time.Duration(n)
	}

	return report
}

// keywordScore is the fraction of expected keywords the answer
// mentions, case-insensitively. No expectations means a full score.
func keywordScore(answer string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 1.0
	}
	lower := strings.ToLower(answer)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	return round3(float64(hits) / float64(len(keywords)))
}

func excerpt(s string) string {
	if len(s) <= answerExcerptLimit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= answerExcerptLimit {
		return s
	}
	return string(runes[:answerExcerptLimit])
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
