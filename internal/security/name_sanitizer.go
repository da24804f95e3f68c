// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizerService は銘柄名などのユーザー入力文字列からHTMLマークアップを
// 除去し、フロントエンドでそのまま描画しても安全なプレーンテキストにする。
// bluemondayライブラリのStrictPolicy（全タグ除去）を使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は入力文字列のサニタイズ機能のインターフェースを定義する。
// 銘柄名の保存前バリデーションで使用される。
type NameSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去し、前後の空白を取り除いた
	// プレーンテキストを返す。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たないため、scriptタグやイベント属性を含む
// あらゆるマークアップが除去される。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
// bluemondayはテキストをHTMLエスケープして返すため、プレーンテキストとして
// 扱えるようエンティティを復元してから前後の空白を取り除く。
func (s *nameSanitizer) Sanitize(raw string) string {
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
