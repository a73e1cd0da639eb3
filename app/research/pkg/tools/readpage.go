package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/go-shiori/go-readability"

	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// ReadPageName 网页阅读工具名
const ReadPageName = "read_page"

const truncatedSuffix = "\n[truncated]"

// ReadPage 抓取网页并用 readability 抽取正文
type ReadPage struct {
	client   *http.Client
	maxChars int
}

// NewReadPage 创建网页阅读工具，maxChars 为正文最大字符数
func NewReadPage(maxChars int, hc *http.Client) *ReadPage {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if maxChars <= 0 {
		maxChars = 5000
	}
	return &ReadPage{client: hc, maxChars: maxChars}
}

var _ Tool = (*ReadPage)(nil)

type readPageArgs struct {
	URL string `json:"url"`
}

func (p *ReadPage) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ReadPageName,
		Desc: "Open a web page and return its main readable text. Use it on the most relevant search results.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url": {Type: schema.String, Desc: "absolute http(s) URL of the page", Required: true},
		}),
	}, nil
}

func (p *ReadPage) Kind() dm.ToolKind { return dm.ToolPageRead }

func (p *ReadPage) Invoke(ctx context.Context, argumentsInJSON string) (*Output, error) {
	var args readPageArgs
	if err := decodeArgs(argumentsInJSON, &args); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(args.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("read_page: invalid url %q", args.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; research-radar/1.0)")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", u, res.StatusCode)
	}

	article, err := readability.FromReader(res.Body, u)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", u, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, errors.New("read_page: no readable content")
	}

	title := strings.TrimSpace(article.Title)
	var sb strings.Builder
	if title != "" {
		sb.WriteString("Title: ")
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	sb.WriteString(truncate(text, p.maxChars))

	return &Output{
		Content: sb.String(),
		Sources: []dm.Source{{Title: title, URL: u.String(), Snippet: article.Excerpt}},
	}, nil
}

func (p *ReadPage) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	out, err := p.Invoke(ctx, argumentsInJSON)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// truncate 按字符截断
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + truncatedSuffix
}
