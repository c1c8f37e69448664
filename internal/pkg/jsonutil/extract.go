package jsonutil

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ExtractObject 返回第一个 "{" 到最后一个 "}" 之间（含）的子串。
func ExtractObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

var (
	bareKeyPattern       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// RepairRule 是一条宽松修复规则。
type RepairRule struct {
	Name  string
	Apply func(string) string
}

// RepairRules 按顺序依次应用，每条一次。
var RepairRules = []RepairRule{
	{Name: "single_quotes", Apply: func(s string) string { return strings.ReplaceAll(s, "'", `"`) }},
	{Name: "bare_keys", Apply: func(s string) string { return bareKeyPattern.ReplaceAllString(s, `$1"$2":`) }},
	{Name: "trailing_commas", Apply: func(s string) string { return trailingCommaPattern.ReplaceAllString(s, "$1") }},
}

// Repair 依次应用全部修复规则。
func Repair(s string) string {
	for _, rule := range RepairRules {
		s = rule.Apply(s)
	}
	return s
}

// Normalize 先按严格 JSON 校验，失败后再应用修复规则；仍无效时返回 false。
// repaired 表示返回值来自修复后的文本。
func Normalize(s string) (out string, repaired bool, ok bool) {
	if json.Valid([]byte(s)) {
		return s, false, true
	}
	fixed := Repair(s)
	if json.Valid([]byte(fixed)) {
		return fixed, true, true
	}
	return "", false, false
}
