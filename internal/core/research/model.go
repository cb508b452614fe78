package research

// Document はWeb検索で取得した1件の調査ドキュメントを表す
type Document struct {
	URL     string
	Title   string
	Content string
	// Score は検索プロバイダが返す関連度（参考値）
	Score float64
}
