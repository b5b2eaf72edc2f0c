package clickhouse

import "fmt"

// DailyBarsSchema returns the DDL for the daily bar table in database db.
// ReplacingMergeTree collapses re-ingested (symbol, session) rows.
func DailyBarsSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_bars
(
    session    Date,
    symbol     LowCardinality(String),
    open       Float64,
    high       Float64,
    low        Float64,
    close      Float64,
    volume     Float64,
    ingested_at DateTime64(3) DEFAULT now64(3)
)
ENGINE = ReplacingMergeTree(ingested_at)
PARTITION BY toYear(session)
ORDER BY (symbol, session)`, db),
	}
}
