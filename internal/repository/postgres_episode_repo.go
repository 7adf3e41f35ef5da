package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/podcatch/internal/model"
)

// PostgresEpisodeRepo はPostgreSQLを使用したエピソード読み取りリポジトリ。
type PostgresEpisodeRepo struct {
	db *sql.DB
}

// NewPostgresEpisodeRepo はPostgresEpisodeRepoを生成する。
func NewPostgresEpisodeRepo(db *sql.DB) *PostgresEpisodeRepo {
	return &PostgresEpisodeRepo{db: db}
}

// ListByFeed は指定フィードのエピソードをIDの昇順で取得する。
// afterIDより大きいIDのエピソードを最大limit件返す。
// カーソルベースページネーションに使用する。
func (r *PostgresEpisodeRepo) ListByFeed(ctx context.Context, feedID, afterID int64, limit int) ([]model.Episode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, feed_id, title, description, show_notes, published,
		        keywords, duration, explicit, link_web,
		        media_url, media_length, mime_type, guid
		 FROM episode
		 WHERE feed_id = $1 AND id > $2
		 ORDER BY id ASC
		 LIMIT $3`,
		feedID, afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("エピソード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var episodes []model.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("エピソードの読み取りに失敗しました: %w", err)
		}
		episodes = append(episodes, *ep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エピソード一覧の走査に失敗しました: %w", err)
	}

	return episodes, nil
}

// MaxIDByFeed は指定フィードに保存済みのエピソードIDの最大値を返す。
// エピソードが存在しない場合は0を返す。
func (r *PostgresEpisodeRepo) MaxIDByFeed(ctx context.Context, feedID int64) (int64, error) {
	var maxID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM episode WHERE feed_id = $1`,
		feedID,
	).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("最大エピソードIDの取得に失敗しました: %w", err)
	}
	return maxID, nil
}

// scanEpisode は1行をmodel.Episodeに読み取る。
func scanEpisode(rows *sql.Rows) (*model.Episode, error) {
	ep := &model.Episode{}
	var published sql.NullTime
	var duration sql.NullInt64
	var linkWeb, guid sql.NullString
	var keywords pq.StringArray

	if err := rows.Scan(
		&ep.ID, &ep.FeedID, &ep.Title, &ep.Description, &ep.ShowNotes,
		&published, &keywords, &duration, &ep.Explicit, &linkWeb,
		&ep.Enclosure.MediaURL, &ep.Enclosure.MediaLength,
		&ep.Enclosure.MimeType, &guid,
	); err != nil {
		return nil, err
	}

	if published.Valid {
		t := published.Time.In(time.UTC)
		ep.Published = &t
	}
	ep.Duration = nullInt64Ptr(duration)
	ep.LinkWeb = nullStringValue(linkWeb)
	ep.GUID = nullStringValue(guid)
	ep.Keywords = []string(keywords)

	return ep, nil
}

// compile-time interface check
var _ EpisodeRepository = (*PostgresEpisodeRepo)(nil)
