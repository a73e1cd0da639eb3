package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
	"github.com/iWorld-y/research_radar/app/research/pkg/search"
)

// WebSearchName 搜索工具名
const WebSearchName = "web_search"

// WebSearch 基于 search.Searcher 的网页搜索工具
type WebSearch struct {
	searcher   search.Searcher
	maxResults int
}

// NewWebSearch 创建搜索工具
func NewWebSearch(s search.Searcher, maxResults int) *WebSearch {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearch{searcher: s, maxResults: maxResults}
}

var _ Tool = (*WebSearch)(nil)

type webSearchArgs struct {
	Query string `json:"query"`
	Topic string `json:"topic,omitempty"`
}

type webSearchHit struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	Published string `json:"published,omitempty"`
}

func (w *WebSearch) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: WebSearchName,
		Desc: "Search the web for current information about a company. Returns a JSON list of results with title, url and content.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "search query", Required: true},
			"topic": {Type: schema.String, Desc: "general or news", Enum: []string{"general", "news"}},
		}),
	}, nil
}

func (w *WebSearch) Kind() dm.ToolKind { return dm.ToolWebSearch }

func (w *WebSearch) Invoke(ctx context.Context, argumentsInJSON string) (*Output, error) {
	var args webSearchArgs
	if err := decodeArgs(argumentsInJSON, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, errors.New("web_search: query is required")
	}

	resp, err := w.searcher.Search(ctx, &search.Request{
		Query:      args.Query,
		Topic:      args.Topic,
		MaxResults: w.maxResults,
	})
	if err != nil {
		return nil, err
	}
	resp.Limit(w.maxResults)

	hits := make([]webSearchHit, 0, len(resp.Results))
	sources := make([]dm.Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, webSearchHit{Title: r.Title, URL: r.URL, Content: r.Content, Published: r.PublishedDate})
		if r.URL != "" {
			sources = append(sources, dm.Source{Title: r.Title, URL: r.URL, Snippet: r.Content})
		}
	}

	b, err := json.Marshal(hits)
	if err != nil {
		return nil, err
	}
	return &Output{Content: string(b), Sources: sources}, nil
}

func (w *WebSearch) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	out, err := w.Invoke(ctx, argumentsInJSON)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}
