// Package text 提供日志与通知用的文本裁剪。
package text

import "unicode/utf8"

// Truncate 按字节上限裁剪，不会截断多字节字符，被裁剪时追加 "..."。
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
