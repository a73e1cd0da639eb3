package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	_ "github.com/lib/pq"

	"github.com/iWorld-y/research_radar/app/research/pkg/config"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS research_reports (
	id BIGSERIAL PRIMARY KEY,
	company TEXT NOT NULL,
	model_used TEXT NOT NULL,
	fallback_used BOOLEAN NOT NULL DEFAULT FALSE,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Data 数据库资源
type Data struct {
	db *sql.DB
}

// DSN 拼接 lib/pq 连接串
func DSN(c config.DBConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// NewData 打开连接并初始化表结构
func NewData(c config.DBConfig, logger log.Logger) (*Data, func(), error) {
	db, err := sql.Open("postgres", DSN(c))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	d, err := newData(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		db.Close()
	}
	return d, cleanup, nil
}

func newData(ctx context.Context, db *sql.DB) (*Data, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to init research_reports table: %w", err)
	}
	return &Data{db: db}, nil
}
