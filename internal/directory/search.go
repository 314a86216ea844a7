package directory

import (
	"strings"

	"github.com/hitoshi/storeadmin/internal/model"
)

// filterEntries はメールアドレス・名・姓のいずれかにqueryを含むエントリを返す。
// 大文字小文字は区別しない。queryが空の場合は全件を返す。
func filterEntries(entries []model.DirectoryEntry, query string) []model.DirectoryEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	result := make([]model.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if query == "" || matches(e, query) {
			result = append(result, e)
		}
	}
	return result
}

func matches(e model.DirectoryEntry, query string) bool {
	for _, field := range []string{e.Email, e.FirstName, e.LastName} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
