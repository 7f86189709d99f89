// Package recodex embeds the recodex recommendation engine in a Go program.
//
// The client talks to the product catalog in Postgres and keeps research
// sessions, embedding cache entries and token budgets in Redis or Valkey.
// AI providers are supplied by the caller; without them every flow still
// answers using keyword retrieval and templated explanations.
//
//	client, err := recodex.New(ctx,
//	    recodex.WithPostgres("postgres://localhost/catalog?sslmode=disable"),
//	    recodex.WithRedis("localhost:6379", ""),
//	    recodex.WithEmbedder(myEmbedder, "text-embedding-3-small"),
//	    recodex.WithGenerator(myLLM),
//	)
//	defer client.Close()
//
//	rec, _ := client.Recommend(ctx, "영상 편집용 가벼운 노트북")
//
//	qs, _ := client.Questions(ctx, "모니터")
//	res, _ := client.Research(ctx, qs.SearchID, "모니터", answers)
package recodex
