package models

// QueryRecord is a durably cached question/answer pair.
type QueryRecord struct {
	ID         int64     `json:"id"`
	Query      string    `json:"query"`
	Embedding  []float32 `json:"-"`
	Response   string    `json:"response"`
	UsageCount int64     `json:"usage_count"`
}

// CacheStats reports semantic cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
