package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/hitoshi/podcatch/internal/model"
)

// 参照エンティティの冪等な解決に使用するSQL。
// 「挿入し、競合時は何もせずIDを返し、さらに自然キーでIDを検索する」を
// 1回のラウンドトリップで行う。同一ステートメント内ではCTEの挿入行は
// 外側のSELECTから見えないため、どちらのケースでも結果は常に1行となる。
// これにより自然キーごとに行は正確に1つだけ存在し、同じ未知のキーを
// 同時に参照する2つのトランザクションはどちらも有効なIDを取得できる。
const (
	resolveAuthorSQL = `
		WITH inserted AS (
			INSERT INTO author (name)
			VALUES ($1)
			ON CONFLICT DO NOTHING
			RETURNING id
		)
		SELECT id FROM inserted
		UNION ALL
		SELECT id FROM author WHERE name = $1`

	resolveLanguageSQL = `
		WITH inserted AS (
			INSERT INTO feed_language (code)
			VALUES ($1)
			ON CONFLICT DO NOTHING
			RETURNING id
		)
		SELECT id FROM inserted
		UNION ALL
		SELECT id FROM feed_language WHERE code = $1`

	resolveImageSQL = `
		WITH inserted AS (
			INSERT INTO image (link, hash, filename)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
			RETURNING id
		)
		SELECT id FROM inserted
		UNION ALL
		SELECT id FROM image WHERE hash = $2`

	// カテゴリーは(description, parent_id)を自然キーとする。
	// 親の異なる同名カテゴリーは別エンティティであり、
	// トップレベルカテゴリーとサブカテゴリーが統合されることはない。
	resolveCategorySQL = `
		WITH inserted AS (
			INSERT INTO category (description, parent_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
			RETURNING id
		)
		SELECT id FROM inserted
		UNION ALL
		SELECT id FROM category
		WHERE description = $1 AND parent_id IS NOT DISTINCT FROM $2`

	insertFeedSQL = `
		INSERT INTO feed (
			submitter_id, author_id, title, image_id, description,
			subtitle, url, language_id, link_web, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	insertEpisodeSQL = `
		INSERT INTO episode (
			feed_id, title, description, show_notes, published, keywords,
			duration, explicit, link_web, media_url, media_length, mime_type, guid
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	linkCategorySQL = `INSERT INTO feed_category (feed_id, category_id) VALUES ($1, $2)`
)

// フィードテーブルの一意制約名。違反時に型付きDuplicateエラーへ写像する。
const (
	constraintFeedTitle = "feed_title_key"
	constraintFeedURL   = "feed_url_key"
	constraintFeedImage = "feed_image_id_key"
)

// PostgresIngestRepo はPostgreSQLを使用した取り込みリポジトリ。
// 1回の取り込みの全書き込みを単一トランザクションで実行する。
type PostgresIngestRepo struct {
	db *sql.DB    // 読み取りクエリ用
	tx TxBeginner // SaveFeedのトランザクション開始用
}

// NewPostgresIngestRepo はPostgresIngestRepoを生成する。
func NewPostgresIngestRepo(db *sql.DB) *PostgresIngestRepo {
	return &PostgresIngestRepo{db: db, tx: db}
}

// SaveFeed は1回の取り込みを単一トランザクションとして永続化する。
// 手順: 参照解決 → フィード行挿入 → カテゴリーリンク → エピソード挿入 → コミット。
// いずれかの段階で失敗した場合はロールバックし、部分的な永続化は残さない。
// フィード、カテゴリーリンク、全エピソードはアトミックに可視化される。
func (r *PostgresIngestRepo) SaveFeed(ctx context.Context, doc *model.FeedDocument, submitterID int64, img *model.CachedImage) (int64, error) {
	tx, err := r.tx.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer func() {
		// コミット済みの場合のロールバックは無害なエラーを返すのみ
		_ = tx.Rollback()
	}()

	// 1. 参照エンティティの解決
	authorID, err := r.resolveAuthor(ctx, tx, doc.Author)
	if err != nil {
		return 0, fmt.Errorf("著者の解決に失敗しました: %w", err)
	}

	languageID, err := r.resolveLanguage(ctx, tx, doc.LanguageCode)
	if err != nil {
		return 0, fmt.Errorf("言語の解決に失敗しました: %w", err)
	}

	imageID, err := r.resolveImage(ctx, tx, img)
	if err != nil {
		return 0, fmt.Errorf("画像の解決に失敗しました: %w", err)
	}

	// 2. フィード行の挿入
	feedID, err := r.insertFeed(ctx, tx, doc, submitterID, authorID, languageID, imageID)
	if err != nil {
		return 0, err
	}

	// 3. カテゴリーの解決とリンク
	if err := r.linkCategories(ctx, tx, doc.Categories, feedID); err != nil {
		return 0, fmt.Errorf("カテゴリーのリンクに失敗しました: %w", err)
	}

	// 4. エピソードの一括挿入
	if err := r.insertEpisodes(ctx, tx, feedID, doc.Episodes); err != nil {
		return 0, fmt.Errorf("エピソードの挿入に失敗しました: %w", err)
	}

	// 5. コミット
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	slog.Info("フィードを保存しました",
		slog.Int64("feed_id", feedID),
		slog.Int64("submitter_id", submitterID),
		slog.Int("episodes", len(doc.Episodes)),
		slog.Int("categories", doc.Categories.Len()),
	)

	return feedID, nil
}

// resolveAuthor は著者名を冪等に解決する。
// 名前が無い場合は解決を行わずnilを返す。
func (r *PostgresIngestRepo) resolveAuthor(ctx context.Context, tx *sql.Tx, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	var id int64
	if err := tx.QueryRowContext(ctx, resolveAuthorSQL, name).Scan(&id); err != nil {
		return nil, err
	}
	return &id, nil
}

// resolveLanguage は言語コードを冪等に解決する。
// コードが無い場合は解決を行わずnilを返す。
func (r *PostgresIngestRepo) resolveLanguage(ctx context.Context, tx *sql.Tx, code string) (*int64, error) {
	if code == "" {
		return nil, nil
	}
	var id int64
	if err := tx.QueryRowContext(ctx, resolveLanguageSQL, code).Scan(&id); err != nil {
		return nil, err
	}
	return &id, nil
}

// resolveImage はキャッシュ画像ディスクリプタをコンテンツハッシュで冪等に解決する。
// ディスクリプタが無い場合は解決を行わずnilを返す。
func (r *PostgresIngestRepo) resolveImage(ctx context.Context, tx *sql.Tx, img *model.CachedImage) (*int64, error) {
	if img == nil {
		return nil, nil
	}
	var id int64
	if err := tx.QueryRowContext(ctx, resolveImageSQL, img.SourceLink, img.Hash, img.Filename).Scan(&id); err != nil {
		return nil, err
	}
	return &id, nil
}

// resolveCategory はカテゴリーを(description, parent_id)で冪等に解決する。
func (r *PostgresIngestRepo) resolveCategory(ctx context.Context, tx *sql.Tx, description string, parentID *int64) (int64, error) {
	var id int64
	if err := tx.QueryRowContext(ctx, resolveCategorySQL, description, parentID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// insertFeed はフィード行を挿入し新しいIDを返す。
// 一意制約違反は制約名に基づいて型付きDuplicateエラーへ写像する。
func (r *PostgresIngestRepo) insertFeed(ctx context.Context, tx *sql.Tx, doc *model.FeedDocument, submitterID int64, authorID, languageID, imageID *int64) (int64, error) {
	var feedID int64
	err := tx.QueryRowContext(ctx, insertFeedSQL,
		submitterID, authorID, doc.Title, imageID, doc.Description,
		nullString(doc.Subtitle), doc.URL, languageID, nullString(doc.LinkWeb),
		model.FeedStatusQueued,
	).Scan(&feedID)
	if err != nil {
		if dup, ok := duplicateFieldFromError(err); ok {
			return 0, model.NewDuplicateFeedError(dup)
		}
		return 0, fmt.Errorf("フィード行の挿入に失敗しました: %w", err)
	}
	return feedID, nil
}

// linkCategories はカテゴリーツリーの全エントリーを解決しフィードにリンクする。
// 各親について、親のリンクが必ず子のリンクに先行する。
func (r *PostgresIngestRepo) linkCategories(ctx context.Context, tx *sql.Tx, tree *model.CategoryTree, feedID int64) error {
	for _, parent := range tree.Parents() {
		parentID, err := r.resolveCategory(ctx, tx, parent, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, linkCategorySQL, feedID, parentID); err != nil {
			return err
		}
		for _, child := range tree.Children(parent) {
			childID, err := r.resolveCategory(ctx, tx, child, &parentID)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, linkCategorySQL, feedID, childID); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertEpisodes は全エピソード候補をフィードIDを参照する行として挿入する。
// 個々の挿入失敗はトランザクション全体のロールバックにつながる。
// 部分的なエピソードのコミットは存在しない。
func (r *PostgresIngestRepo) insertEpisodes(ctx context.Context, tx *sql.Tx, feedID int64, episodes []model.EpisodeCandidate) error {
	stmt, err := tx.PrepareContext(ctx, insertEpisodeSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ep := range episodes {
		var duration sql.NullInt64
		if ep.Duration != nil {
			duration = sql.NullInt64{Int64: *ep.Duration, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			feedID, ep.Title, ep.Description, ep.ShowNotes, ep.Published,
			pq.Array(ep.Keywords), duration, ep.Explicit,
			nullString(ep.LinkWeb), ep.Enclosure.MediaURL,
			ep.Enclosure.MediaLength, ep.Enclosure.MimeType,
			nullString(ep.GUID),
		)
		if err != nil {
			return fmt.Errorf("エピソード %q の挿入に失敗しました: %w", ep.Title, err)
		}
	}
	return nil
}

// FindDuplicate はタイトルまたは正規URLが既存フィードと一致するかを確認し、
// 一致したフィールドを返す。両方が一致する場合はURLを優先する。
func (r *PostgresIngestRepo) FindDuplicate(ctx context.Context, title, url string) (model.DuplicateField, error) {
	var titleMatch, urlMatch bool
	err := r.db.QueryRowContext(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM feed WHERE title = $1),
			EXISTS (SELECT 1 FROM feed WHERE url = $2)`,
		title, url,
	).Scan(&titleMatch, &urlMatch)
	if err != nil {
		return "", fmt.Errorf("フィードの重複チェックに失敗しました: %w", err)
	}
	switch {
	case urlMatch:
		return model.DuplicateURL, nil
	case titleMatch:
		return model.DuplicateTitle, nil
	default:
		return "", nil
	}
}

// duplicateFieldFromError はPostgreSQLの一意制約違反から
// 違反フィールドを判定する。一意制約違反でない場合はfalseを返す。
func duplicateFieldFromError(err error) (model.DuplicateField, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Name() != "unique_violation" {
		return "", false
	}
	switch pqErr.Constraint {
	case constraintFeedTitle:
		return model.DuplicateTitle, true
	case constraintFeedURL:
		return model.DuplicateURL, true
	case constraintFeedImage:
		return model.DuplicateImage, true
	default:
		return "", false
	}
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// compile-time interface check
var _ IngestRepository = (*PostgresIngestRepo)(nil)
