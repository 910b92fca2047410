package query

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	wordPattern  = regexp.MustCompile(`[A-Za-z_]+`)
)

// Validate проверяет, что запрос только читает данные.
func Validate(sql string) error {
	text := Normalize(sql)
	if text == "" {
		return fmt.Errorf("query is empty")
	}

	upper := strings.ToUpper(text)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	if strings.Contains(text, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}

	forbidden := map[string]bool{
		"DROP": true, "DELETE": true, "UPDATE": true, "INSERT": true, "CREATE": true,
		"ALTER": true, "MERGE": true, "TRUNCATE": true, "GRANT": true, "REVOKE": true,
		"CALL": true, "PUT": true, "COPY": true,
	}
	for _, word := range wordPattern.FindAllString(upper, -1) {
		if forbidden[word] {
			return fmt.Errorf("forbidden operation: %s", word)
		}
	}
	return nil
}

// Normalize убирает комментарии и завершающие точки с запятой.
func Normalize(sql string) string {
	text := blockComment.ReplaceAllString(sql, " ")
	text = lineComment.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	for strings.HasSuffix(text, ";") {
		text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	}
	return text
}
