package domain

import (
	"regexp"
	"strings"
)

// emailFormatRegex 本地格式预检：本地部分与域名非空、包含 @、
// 域名含点、不允许空白字符。比完整的 RFC 校验宽松，
// 目的只是在调用外部 API 之前过滤明显非法的地址。
var emailFormatRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmailFormat 检查邮箱地址的基本格式。
func IsValidEmailFormat(email string) bool {
	return emailFormatRegex.MatchString(email)
}

// NormalizeEmail 规范化邮箱地址：去除首尾空白并转为小写。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
