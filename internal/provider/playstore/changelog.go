package playstore

import "strings"

// ChangelogSeparator 是扁平化 changelog 时相邻条目之间的分隔符。
const ChangelogSeparator = "\n\n"

// Flatten 把 changelog 条目拼成一段展示文本；末尾不追加分隔符，空列表返回空串。
func Flatten(items []string) string {
	return strings.Join(items, ChangelogSeparator)
}
