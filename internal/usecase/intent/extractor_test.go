package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/category"
	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/metrics"
)

type fakeLLM struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (domain.GenerationResult, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return domain.GenerationResult{}, f.err
	}
	return domain.GenerationResult{Text: f.text, TotalTokens: 10}, nil
}

type staticHints string

func (h staticHints) HintList(context.Context) string { return string(h) }

func newExtractor(llm *fakeLLM) *Extractor {
	metrics.Register()
	return NewExtractor(llm, staticHints("CPU, 노트북, 그래픽카드"), zap.NewNop())
}

func TestExtract_ParsesFencedJSON(t *testing.T) {
	llm := &fakeLLM{text: "```json\n" + `{
		"product_category": "노트북",
		"search_query": "가벼운 사무용 노트북",
		"keywords": ["그램", "경량"],
		"min_price": "500,000원",
		"max_price": 1500000,
		"user_needs": "가볍고 배터리 오래가는 노트북",
		"priorities": {"휴대성": 0.8, "가격": "0.2"},
		"analysis_message": "경량 노트북을 찾고 계시네요."
	}` + "\n```"}
	e := newExtractor(llm)

	in, err := e.Extract(context.Background(), "가벼운 노트북 추천")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if in.Category != "노트북" || in.SearchText != "가벼운 사무용 노트북" {
		t.Errorf("unexpected intent: %+v", in)
	}
	if len(in.Keywords) != 2 || in.Keywords[0] != "그램" {
		t.Errorf("Keywords = %v", in.Keywords)
	}
	if in.MinPrice == nil || *in.MinPrice != 500000 || in.MaxPrice == nil || *in.MaxPrice != 1500000 {
		t.Errorf("price = %v..%v", in.MinPrice, in.MaxPrice)
	}
	if in.Priorities["가격"] != 0.2 {
		t.Errorf("Priorities = %v", in.Priorities)
	}
	if in.Degraded {
		t.Error("LLM-backed intent must not be degraded")
	}
	if !strings.Contains(llm.prompts[0], "CPU, 노트북, 그래픽카드") {
		t.Error("prompt is missing the category hint list")
	}
}

func TestExtract_Defaults(t *testing.T) {
	llm := &fakeLLM{text: `{"product_category": null, "keywords": "", "min_price": null}`}
	e := newExtractor(llm)

	in, err := e.Extract(context.Background(), "가성비 모니터")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if in.Category != category.Other {
		t.Errorf("Category = %q, want %q", in.Category, category.Other)
	}
	if in.SearchText != "가성비 모니터" || in.UserNeeds != "가성비 모니터" {
		t.Errorf("texts not defaulted: %+v", in)
	}
	if len(in.Keywords) != 1 || in.Keywords[0] != "가성비 모니터" {
		t.Errorf("Keywords = %v", in.Keywords)
	}
	if in.HasPriceRange() {
		t.Error("expected no price range")
	}
}

func TestExtract_InvertedPriceDropped(t *testing.T) {
	llm := &fakeLLM{text: `{"product_category": "노트북", "min_price": 2000000, "max_price": 500000}`}
	e := newExtractor(llm)

	in, err := e.Extract(context.Background(), "노트북")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if in.HasPriceRange() {
		t.Errorf("inverted range must be discarded, got %v..%v", in.MinPrice, in.MaxPrice)
	}
}

func TestExtract_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
	}{
		{"provider error", &fakeLLM{err: domain.ErrLLMProviderError}},
		{"rate limited", &fakeLLM{err: domain.ErrRateLimited}},
		{"not json", &fakeLLM{text: "죄송합니다. 이해하지 못했습니다."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := newExtractor(tt.llm).Extract(context.Background(), "그래픽카드 추천")
			if err != nil {
				t.Fatalf("expected fallback, got %v", err)
			}
			if !in.Degraded || in.Category != category.Other || in.SearchText != "그래픽카드 추천" {
				t.Errorf("unexpected fallback: %+v", in)
			}
		})
	}
}

func TestExtract_MisconfiguredPropagates(t *testing.T) {
	llm := &fakeLLM{err: domain.NewMisconfigured("gemini", "missing API key")}

	_, err := newExtractor(llm).Extract(context.Background(), "노트북")
	if !errors.Is(err, domain.ErrProviderMisconfigured) {
		t.Fatalf("expected ErrProviderMisconfigured, got %v", err)
	}
}

func TestAnalyzeSurvey(t *testing.T) {
	llm := &fakeLLM{text: `{"product_category": "노트북", "search_query": "게임용 고성능 노트북", "max_price": 0}`}
	e := newExtractor(llm)
	answers := []intent.SurveyAnswer{
		{QuestionID: 1, Question: "주요 사용 목적은 무엇인가요?", Answer: "게임"},
		{QuestionID: 2, Answer: "200만원 이상"},
	}

	in, err := e.AnalyzeSurvey(context.Background(), "노트북 추천", answers)
	if err != nil {
		t.Fatalf("AnalyzeSurvey: %v", err)
	}
	if in.SearchText != "게임용 고성능 노트북" || in.Category != "노트북" {
		t.Errorf("unexpected intent: %+v", in)
	}
	if in.MaxPrice != nil {
		t.Errorf("zero max price must be absent, got %d", *in.MaxPrice)
	}
	prompt := llm.prompts[0]
	if !strings.Contains(prompt, "Q1: 주요 사용 목적은 무엇인가요? -> A: 게임") ||
		!strings.Contains(prompt, "Q2: 질문 2 -> A: 200만원 이상") {
		t.Errorf("answers not rendered into prompt:\n%s", prompt)
	}
}

func TestAnalyzeSurvey_NullCategoryStaysUnknown(t *testing.T) {
	llm := &fakeLLM{text: `{"product_category": null}`}

	in, err := newExtractor(llm).AnalyzeSurvey(context.Background(), "추천해줘", nil)
	if err != nil {
		t.Fatalf("AnalyzeSurvey: %v", err)
	}
	if in.CategoryKnown() {
		t.Errorf("expected unknown category, got %q", in.Category)
	}
}

func TestAnalyzeSurvey_Fallback(t *testing.T) {
	llm := &fakeLLM{err: errors.New("boom")}
	answers := []intent.SurveyAnswer{{QuestionID: 1, Answer: "게임"}}

	in, err := newExtractor(llm).AnalyzeSurvey(context.Background(), "노트북", answers)
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if !in.Degraded || in.SearchText != "노트북 게임" {
		t.Errorf("unexpected fallback: %+v", in)
	}
}

func TestGenerateQuestions(t *testing.T) {
	llm := &fakeLLM{text: `{"questions": [
		{"question_id": 1, "question": "용도는?", "options": ["게임", "사무"]},
		{"question": "예산은?", "options": [{"id": 7, "label": "100만원 이하"}, {"label": "상관없음"}]},
		{"question_id": 3, "question": "화면 크기는?", "options": ["13", "15", " "]},
		{"question_id": 4, "question": "무게는?", "options": ["가벼움"]},
		{"question_id": 5, "question": "색상은?", "options": ["블랙"]}
	]}`}

	qs, err := newExtractor(llm).GenerateQuestions(context.Background(), "노트북")
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(qs) != intent.QuestionCount {
		t.Fatalf("expected %d questions, got %d", intent.QuestionCount, len(qs))
	}
	if qs[1].ID != 2 {
		t.Errorf("missing id must default to position, got %d", qs[1].ID)
	}
	if qs[1].Options[0].ID != 7 || qs[1].Options[1].ID != 2 {
		t.Errorf("unexpected option ids: %+v", qs[1].Options)
	}
	if len(qs[2].Options) != 2 {
		t.Errorf("blank option must be skipped: %+v", qs[2].Options)
	}
	if qs[3].Text != "무게는?" {
		t.Errorf("extra questions must be truncated, last = %q", qs[3].Text)
	}
}

func TestGenerateQuestions_DefaultsWhenTooFew(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
	}{
		{"two questions", &fakeLLM{text: `{"questions": [
			{"question": "용도는?", "options": ["게임"]},
			{"question": "예산은?", "options": ["100만원"]}
		]}`}},
		{"questions without options", &fakeLLM{text: `{"questions": [
			{"question": "a"}, {"question": "b"}, {"question": "c"}, {"question": "d"}
		]}`}},
		{"garbage", &fakeLLM{text: "no"}},
		{"provider error", &fakeLLM{err: domain.ErrLLMProviderError}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := newExtractor(tt.llm).GenerateQuestions(context.Background(), "노트북")
			if err != nil {
				t.Fatalf("expected defaults, got %v", err)
			}
			if qs[0].Text != intent.DefaultQuestions()[0].Text {
				t.Errorf("expected default questions, got %+v", qs)
			}
		})
	}
}

func TestGenerateQuestions_MisconfiguredPropagates(t *testing.T) {
	llm := &fakeLLM{err: domain.NewMisconfigured("gemini", "invalid API key")}

	if _, err := newExtractor(llm).GenerateQuestions(context.Background(), "노트북"); !errors.Is(err, domain.ErrProviderMisconfigured) {
		t.Fatalf("expected ErrProviderMisconfigured, got %v", err)
	}
}
