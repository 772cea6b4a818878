package xtrace

import "strings"

// traceparentLen W3C traceparent v00 长度：00-{32}-{16}-{2}。
const traceparentLen = 55

// ParseTraceparent 解析 W3C traceparent。
// 版本 ff 无效；未知版本按 v00 解析前 4 段，允许以 "-" 追加的扩展字段。
func ParseTraceparent(s string) (traceID, spanID, flags string, ok bool) {
	if len(s) < traceparentLen || s[2] != '-' || s[35] != '-' || s[52] != '-' {
		return "", "", "", false
	}
	version := s[0:2]
	if !isHex(version) || strings.EqualFold(version, "ff") {
		return "", "", "", false
	}
	if version == "00" && len(s) != traceparentLen {
		return "", "", "", false
	}
	if len(s) > traceparentLen && s[traceparentLen] != '-' {
		return "", "", "", false
	}

	traceID, spanID, flags = s[3:35], s[36:52], s[53:55]
	if !ValidTraceID(traceID) || !ValidSpanID(spanID) || !isHex(flags) {
		return "", "", "", false
	}
	return strings.ToLower(traceID), strings.ToLower(spanID), strings.ToLower(flags), true
}

// FormatTraceparent 生成小写的 v00 traceparent。
// traceID 或 spanID 无效时返回空串；flags 无效时取 "00"。
func FormatTraceparent(traceID, spanID, flags string) string {
	if !ValidTraceID(traceID) || !ValidSpanID(spanID) {
		return ""
	}
	if len(flags) != 2 || !isHex(flags) {
		flags = "00"
	}
	return "00-" + strings.ToLower(traceID) + "-" + strings.ToLower(spanID) + "-" + strings.ToLower(flags)
}

// ValidTraceID 32 位十六进制且非全零。
func ValidTraceID(id string) bool {
	return len(id) == 32 && isHex(id) && strings.Trim(id, "0") != ""
}

// ValidSpanID 16 位十六进制且非全零。
func ValidSpanID(id string) bool {
	return len(id) == 16 && isHex(id) && strings.Trim(id, "0") != ""
}

// isHex 解析端大小写均接受，输出端统一小写。
func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
