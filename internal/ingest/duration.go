// Package ingest はフィード取り込み・正規化パイプラインを提供する。
package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// DurationMode は再生時間文字列の分オーバーフローの扱いを指定する。
type DurationMode int

const (
	// DurationStrict は分が60以上の場合にフォーマットエラーとする。
	DurationStrict DurationMode = iota
	// DurationCarry は分が60以上の場合に時への繰り上げを許容する
	// （分 div 60 を時に加算し、剰余を分として保持する）。
	// 取り込みパイプラインはこのモードを使用する。
	DurationCarry
)

// ParseDuration はエピソードの再生時間文字列を秒数にパースする。
// 受理する文法（優先順）:
//  1. 純粋な整数文字列 → そのまま秒数（例 "95" → 95）
//  2. H:MM:SS / HH:MM:SS（秒セグメントは正確に2桁）
//  3. M:SS / MM:SS（秒セグメントは正確に2桁）
//
// 秒が60以上の場合は両モードともフォーマットエラーとなる。
// その他の形（セグメント数不一致、2桁でない秒、非数値トークン）もエラーとなる。
func ParseDuration(s string, mode DurationMode) (int64, error) {
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sec, nil
	}

	segments := strings.Split(s, ":")

	var hourPart, minutePart, secondPart string
	switch len(segments) {
	case 3:
		hourPart, minutePart, secondPart = segments[0], segments[1], segments[2]
	case 2:
		hourPart, minutePart, secondPart = "0", segments[0], segments[1]
	default:
		return 0, fmt.Errorf("再生時間のセグメント数が不正です: %q", s)
	}

	// 秒セグメントは正確に2桁でなければならない
	if len(secondPart) != 2 {
		return 0, fmt.Errorf("再生時間の秒セグメントが2桁ではありません: %q", s)
	}

	hours, err := parseDigitGroup(hourPart)
	if err != nil {
		return 0, fmt.Errorf("再生時間の時セグメントが不正です: %q", s)
	}
	minutes, err := parseDigitGroup(minutePart)
	if err != nil {
		return 0, fmt.Errorf("再生時間の分セグメントが不正です: %q", s)
	}
	seconds, err := parseDigitGroup(secondPart)
	if err != nil {
		return 0, fmt.Errorf("再生時間の秒セグメントが不正です: %q", s)
	}

	if seconds >= 60 {
		return 0, fmt.Errorf("再生時間の秒が60以上です: %q", s)
	}
	if minutes >= 60 {
		if mode == DurationStrict {
			return 0, fmt.Errorf("再生時間の分が60以上です: %q", s)
		}
		hours += minutes / 60
		minutes %= 60
	}

	return hours*3600 + minutes*60 + seconds, nil
}

// parseDigitGroup は再生時間の1セグメントを数値にパースする。
// 1桁はそのままの値、2～3桁は先頭の0を取り除いた値としてパースする。
// ただしリテラル "00" は0としてパースする（フォーマットエラーではない）。
// それ以外の長さ、および数字以外を含むセグメントはエラーとなる。
func parseDigitGroup(s string) (int64, error) {
	switch len(s) {
	case 1:
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return 0, err
		}
		return int64(v), nil
	case 2, 3:
		if s == "00" {
			return 0, nil
		}
		stripped := strings.TrimLeft(s, "0")
		if stripped == "" {
			return 0, fmt.Errorf("数字グループが不正です: %q", s)
		}
		v, err := strconv.ParseUint(stripped, 10, 16)
		if err != nil {
			return 0, err
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("数字グループの桁数が不正です: %q", s)
	}
}
