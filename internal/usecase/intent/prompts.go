package intent

// Prompt templates. Placeholders are filled with fmt.Sprintf in argument order.

const extractPrompt = `당신은 컴퓨터/전자제품 쇼핑 어시스턴트입니다.
사용자의 질문을 분석하여 상품 검색 의도를 JSON으로만 응답하세요.

사용 가능한 카테고리 목록: %s

사용자 질문: %s

응답 형식:
{
  "product_category": "위 목록 중 가장 알맞은 카테고리 이름, 모르면 \"기타\"",
  "search_query": "벡터 검색에 사용할 핵심 검색 문장",
  "keywords": ["상품명에 포함될 만한 키워드"],
  "min_price": 최소 가격(원, 정수) 또는 null,
  "max_price": 최대 가격(원, 정수) 또는 null,
  "user_needs": "사용자의 핵심 요구사항 요약",
  "priorities": {"성능": 0.0, "가격": 0.0, "휴대성": 0.0},
  "analysis_message": "사용자에게 보여줄 한 문장 분석 결과"
}`

const surveyPrompt = `당신은 컴퓨터/전자제품 쇼핑 리서치 전문가입니다.
사용자의 질문과 설문 응답을 분석하여 상품 검색 조건을 JSON으로만 응답하세요.

사용 가능한 카테고리 목록: %s

사용자 질문: %s

설문 응답:
%s

응답 형식:
{
  "product_category": "위 목록 중 가장 알맞은 카테고리 이름 또는 null",
  "search_query": "설문 응답을 반영한 벡터 검색 문장",
  "keywords": ["핵심 키워드"],
  "min_price": 최소 가격(원, 정수) 또는 null,
  "max_price": 최대 가격(원, 정수) 또는 null,
  "user_needs": "사용자의 요구사항 요약",
  "priorities": {"항목": 가중치}
}`

const questionPrompt = `당신은 컴퓨터/전자제품 쇼핑 리서치 전문가입니다.
사용자가 원하는 상품을 정확히 추천하기 위해 객관식 질문 4개를 만들어 JSON으로만 응답하세요.
각 질문에는 3~4개의 선택지를 포함하세요.

사용자 질문: %s

응답 형식:
{
  "questions": [
    {"question_id": 1, "question": "질문 내용", "options": ["선택지1", "선택지2", "선택지3"]}
  ]
}`
