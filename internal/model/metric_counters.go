package model

// Counters 与数据源无关的规范化计数
type Counters struct {
	Impressions int64 `json:"impressions"`
	Likes       int64 `json:"likes"`
	Reshares    int64 `json:"reshares"`
	Replies     int64 `json:"replies"`
	Quotes      int64 `json:"quotes"`
	Bookmarks   int64 `json:"bookmarks"`
	Followers   int64 `json:"followers"`
	Following   int64 `json:"following"`
}

// Fields 按固定顺序返回所有计数，便于统一校验
func (c Counters) Fields() []int64 {
	return []int64{c.Impressions, c.Likes, c.Reshares, c.Replies, c.Quotes, c.Bookmarks, c.Followers, c.Following}
}

// Interactions 点赞、转发、回复、引用之和
func (c Counters) Interactions() int64 {
	return c.Likes + c.Reshares + c.Replies + c.Quotes
}
