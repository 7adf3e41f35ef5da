package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/podcatch/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィード読み取りリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id int64) (*model.Feed, error) {
	feed := &model.Feed{}
	var authorID, imageID, languageID sql.NullInt64
	var subtitle, linkWeb sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, submitter_id, author_id, title, image_id, description,
		        subtitle, url, language_id, link_web, status,
		        submitted, last_modified
		 FROM feed WHERE id = $1`,
		id,
	).Scan(
		&feed.ID, &feed.SubmitterID, &authorID, &feed.Title, &imageID,
		&feed.Description, &subtitle, &feed.URL, &languageID, &linkWeb,
		&feed.Status, &feed.Submitted, &feed.LastModified,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	feed.AuthorID = nullInt64Ptr(authorID)
	feed.ImageID = nullInt64Ptr(imageID)
	feed.LanguageID = nullInt64Ptr(languageID)
	feed.Subtitle = nullStringValue(subtitle)
	feed.LinkWeb = nullStringValue(linkWeb)

	return feed, nil
}

// nullInt64Ptr はsql.NullInt64をnil許容のint64ポインタに変換する。
func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
