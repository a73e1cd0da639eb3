package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// ErrReportNotFound 报告不存在
var ErrReportNotFound = errors.New("report not found")

// ReportRepo 以 JSONB 保存完整报告
type ReportRepo struct {
	data *Data
}

// NewReportRepo 创建报告仓库
func NewReportRepo(d *Data) *ReportRepo {
	return &ReportRepo{data: d}
}

// SaveReport 保存报告，返回自增 ID
func (r *ReportRepo) SaveReport(ctx context.Context, rep *dm.StructuredReport) (int64, error) {
	clean := sanitizeReport(rep)
	payload, err := json.Marshal(clean)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}

	var id int64
	err = r.data.db.QueryRowContext(ctx,
		`INSERT INTO research_reports (company, model_used, fallback_used, payload) VALUES ($1, $2, $3, $4) RETURNING id`,
		clean.Metadata.Company, clean.Metadata.ModelUsed, clean.Metadata.FallbackUsed, payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// GetReport 按 ID 读取报告
func (r *ReportRepo) GetReport(ctx context.Context, id int64) (*dm.StructuredReport, error) {
	var payload []byte
	err := r.data.db.QueryRowContext(ctx, `SELECT payload FROM research_reports WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report %d: %w", id, err)
	}

	var rep dm.StructuredReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", id, err)
	}
	rep.Normalize()
	return &rep, nil
}

// sanitizeReport 返回清洗后的副本，PostgreSQL 的 JSONB 不接受 \u0000
func sanitizeReport(in *dm.StructuredReport) *dm.StructuredReport {
	out := *in
	out.CompanyOverview = sanitize(in.CompanyOverview)
	out.FullReport = sanitize(in.FullReport)
	out.RecentDevelopments = sanitizeAll(in.RecentDevelopments)
	out.TechnologyStack = sanitizeAll(in.TechnologyStack)
	out.Challenges = sanitizeAll(in.Challenges)
	out.Opportunities = sanitizeAll(in.Opportunities)
	out.Recommendations = sanitizeAll(in.Recommendations)

	out.KeyStakeholders = make([]dm.Stakeholder, len(in.KeyStakeholders))
	for i, s := range in.KeyStakeholders {
		out.KeyStakeholders[i] = dm.Stakeholder{Name: sanitize(s.Name), Role: sanitize(s.Role)}
	}
	out.Citations = make([]dm.Citation, len(in.Citations))
	for i, c := range in.Citations {
		c.Title = sanitize(c.Title)
		out.Citations[i] = c
	}
	out.Normalize()
	return &out
}

func sanitizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = sanitize(s)
	}
	return out
}

func sanitize(s string) string {
	// 移除无效的 UTF-8 字符
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r == utf8.RuneError {
				continue
			}
			v = append(v, r)
		}
		s = string(v)
	}
	return removeNullBytes(s)
}

func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
