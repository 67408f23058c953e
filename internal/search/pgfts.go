package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a UNION ALL over posts and the replies embedded in them using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	categoryFilter := ""
	if q.Category != "" {
		categoryFilter = " AND p.category = $2"
		args = append(args, q.Category)
	}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultPost {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'post'::text AS type, p.id, p.id AS post_id, p.category, p.author,
				ts_headline('english', p.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(p.fts, %s) AS rank
			FROM posts p
			WHERE p.fts @@ %s%s`, tsQuery, tsQuery, tsQuery, categoryFilter))
	}

	if q.FilterType == "" || q.FilterType == ResultReply {
		replyText := "coalesce(r.value->>'content', '')"
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'reply'::text AS type, r.value->>'id', p.id AS post_id, p.category, coalesce(r.value->>'author', ''),
				ts_headline('english', %s, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(to_tsvector('english', %s), %s) AS rank
			FROM posts p
			CROSS JOIN LATERAL jsonb_array_elements(p.replies) AS r(value)
			WHERE p.fts @@ %s AND to_tsvector('english', %s) @@ %s%s`,
			replyText, tsQuery, replyText, tsQuery, tsQuery, replyText, tsQuery, categoryFilter))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, post_id, category, author, snippet
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, union, limit, offset)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.PostID, &r.Category, &r.Author, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}
