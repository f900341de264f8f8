// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultBio は新規プロフィール作成時の自己紹介の初期値。
// 既存データとの互換のため空文字ではなく半角スペース1文字を保存する。
const DefaultBio = " "

// UserProfile はサービス利用ユーザーのプロフィールドキュメントを表す。
// UserID（IdPのsubject ID）で一意に識別される。
type UserProfile struct {
	// ID は内部ドキュメントID。クライアントには返さない。
	ID string

	UserID       string
	Username     string
	Name         string
	ProfileImage string

	LikeLaws     []string
	HateLaws     []string
	Bookmarks    []string
	Comments     []string
	RecentlyView []string

	ReceiveMail bool
	Bio         string

	CreatedAt time.Time
}

// NewUserProfile は初回ログイン時のデフォルト値を持つプロフィールを生成する。
// 参照リストはすべて空、メール受信はfalse、自己紹介はDefaultBioとなる。
func NewUserProfile(userID, username, name, profileImage string) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		Username:     username,
		Name:         name,
		ProfileImage: profileImage,
		LikeLaws:     []string{},
		HateLaws:     []string{},
		Bookmarks:    []string{},
		Comments:     []string{},
		RecentlyView: []string{},
		ReceiveMail:  false,
		Bio:          DefaultBio,
	}
}
