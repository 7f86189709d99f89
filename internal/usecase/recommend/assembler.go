package recommend

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/domain/product"
	"github.com/kailas-cloud/recodex/internal/domain/search/candidate"
	"github.com/kailas-cloud/recodex/internal/usecase/rerank"
)

// User-facing messages.
const (
	noResultsMessage = "조건에 맞는 상품을 찾지 못했습니다."
	noResultsInFmt   = "'%s' 카테고리에서 조건에 맞는 상품을 찾지 못했습니다."
	analysisFmt      = "%s 추천 결과입니다."
)

// SingleShotItem is one product of a single-shot recommendation.
type SingleShotItem struct {
	ProductCode          string
	Name                 string
	Brand                string
	Price                int64
	ThumbnailURL         *string
	RecommendationReason string
	Specs                map[string]any
	ReviewCount          int
	ReviewRating         *float64
}

// SingleShotResult is the answer to a natural-language query.
type SingleShotResult struct {
	AnalysisMessage string
	Products        []SingleShotItem
}

// ResearchItem is one product of a research recommendation.
type ResearchItem struct {
	ProductCode          string
	Name                 string
	Price                int64
	SimilarityScore      float64 // rounded to 2 decimals
	PerformanceScore     float64 // rounded to 2 decimals
	ImageURL             *string
	DetailURL            *string
	RecommendationReason string
	ReviewSummary        string
	SpecSummary          string
	MatchRank            int
	IsLowestPrice        bool
}

// ResearchResult is the answer to a completed survey.
type ResearchResult struct {
	Query    string
	Message  string // set only when nothing matched
	Products []ResearchItem
}

// QuestionSet is the first step of the research flow.
type QuestionSet struct {
	SearchID  string
	Questions []intent.Question
}

func noResults(categoryName string) string {
	if categoryName == "" {
		return noResultsMessage
	}
	return fmt.Sprintf(noResultsInFmt, categoryName)
}

func analysisMessage(in intent.Intent, categoryName string) string {
	if in.AnalysisMessage != "" {
		return in.AnalysisMessage
	}
	return fmt.Sprintf(analysisFmt, categoryName)
}

func assembleSingleShot(
	in intent.Intent, categoryName string, top []candidate.Candidate,
	exps map[string]rerank.Explanation, malls map[int64]product.MallInfo,
) SingleShotResult {
	items := make([]SingleShotItem, len(top))
	for i, c := range top {
		p := c.Product()
		mall, ok := malls[p.ID]
		item := SingleShotItem{
			ProductCode:          p.Code,
			Name:                 p.Name,
			Brand:                p.Brand,
			Price:                p.Price,
			RecommendationReason: exps[p.Code].Reason,
			Specs:                p.Spec,
			ReviewCount:          p.ReviewCount,
			ReviewRating:         p.ReviewRating,
		}
		if item.Specs == nil {
			item.Specs = map[string]any{}
		}
		if ok {
			item.ThumbnailURL = nonEmpty(mall.ImageURL)
		}
		items[i] = item
	}
	return SingleShotResult{
		AnalysisMessage: analysisMessage(in, categoryName),
		Products:        items,
	}
}

func assembleResearch(
	query string, top []candidate.Candidate,
	exps map[string]rerank.Explanation, malls map[int64]product.MallInfo,
) ResearchResult {
	products := make([]product.Product, len(top))
	for i, c := range top {
		products[i] = c.Product()
	}
	lowest := rerank.LowestPrices(products)

	items := make([]ResearchItem, len(top))
	for i, c := range top {
		p := products[i]
		exp := exps[p.Code]
		item := ResearchItem{
			ProductCode:          p.Code,
			Name:                 p.Name,
			Price:                p.Price,
			SimilarityScore:      round2(c.Score()),
			PerformanceScore:     round2(rerank.PerformanceScore(c.Score(), p)),
			RecommendationReason: exp.Reason,
			ReviewSummary:        exp.ReviewSummary,
			SpecSummary:          p.SummaryText(),
			MatchRank:            i + 1,
			IsLowestPrice:        lowest[p.Code],
		}
		if mall, ok := malls[p.ID]; ok {
			item.ImageURL = nonEmpty(mall.ImageURL)
			item.DetailURL = nonEmpty(mall.PageURL)
		}
		items[i] = item
	}
	return ResearchResult{Query: query, Products: items}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
