package retrieval

// Chunk は調査ドキュメントから切り出した1区間とその埋め込みを表す
type Chunk struct {
	// Ordinal はインデックス全体での通し番号（元ドキュメント順）
	Ordinal int

	Text string

	// ソースメタデータ
	SourceURL   string
	SourceTitle string

	Embedding []float32
}

// ScoredChunk は類似検索の結果チャンクとそのスコアを表す
type ScoredChunk struct {
	Chunk
	// Score はクエリとのコサイン類似度
	Score float64
}
