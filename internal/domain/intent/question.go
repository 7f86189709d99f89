package intent

// QuestionCount is the fixed size of a research question set.
const QuestionCount = 4

// Question is one multiple-choice research question.
type Question struct {
	ID      int      `json:"question_id"`
	Text    string   `json:"question"`
	Options []Option `json:"options"`
}

// Option is a selectable answer.
type Option struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// DefaultQuestions is served whenever question generation cannot produce a full set.
func DefaultQuestions() []Question {
	return []Question{
		{ID: 1, Text: "주요 사용 목적은 무엇인가요?", Options: labels("일반 업무", "영상 편집", "게임", "개발")},
		{ID: 2, Text: "생각하시는 예산 범위는?", Options: labels("100만원 미만", "100~150만원", "150~200만원", "200만원 이상")},
		{ID: 3, Text: "디스플레이에서 가장 중요한 점은?", Options: labels("해상도", "색재현율", "크기", "주사율")},
		{ID: 4, Text: "휴대성을 어느 정도 고려하시나요?", Options: labels("매우 중요", "보통", "성능이 더 중요")},
	}
}

// labels numbers plain option labels from 1.
func labels(ls ...string) []Option {
	out := make([]Option, len(ls))
	for i, l := range ls {
		out[i] = Option{ID: i + 1, Label: l}
	}
	return out
}

// QuestionMap indexes question texts by id.
func QuestionMap(qs []Question) map[int]string {
	m := make(map[int]string, len(qs))
	for _, q := range qs {
		m[q.ID] = q.Text
	}
	return m
}
