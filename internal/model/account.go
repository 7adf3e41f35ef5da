// Package model はドメインモデルを定義する。
package model

import "time"

// Account はフィードの提出者アカウントを表す。
// 認証・権限モデル自体はこのコアの対象外で、
// 取り込みパイプラインは提出者IDを明示的なパラメータとして受け取る。
type Account struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// Session はCookieベースのセッションを表す。
// セッションの発行は対象外の認証サブシステムが行い、
// ここでは検証のための読み取りのみを行う。
type Session struct {
	ID        string
	AccountID int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
