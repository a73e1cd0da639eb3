package search

import (
	"context"
	"errors"
)

// ErrEmptyQuery 查询为空
var ErrEmptyQuery = errors.New("search query is empty")

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query      string
	Topic      string // "news" or "general"
	MaxResults int
	TimeRange  string // day, week, month, year；为空表示不限
}

// Response 通用搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title         string
	URL           string
	Content       string
	Score         float64
	PublishedDate string
}

// Limit 截断结果数量
func (r *Response) Limit(n int) {
	if n > 0 && len(r.Results) > n {
		r.Results = r.Results[:n]
	}
}
