package services

import "github.com/custodia-labs/docquery/internal/core/domain"

// ExtractCitations reduces ranked passages to the ordered list of
// unique source document names. The first occurrence of a document
// keeps its rank position; later occurrences are dropped. Pure and
// stateless: identical input always yields identical output.
func ExtractCitations(passages []domain.Passage) []string {
	seen := make(map[string]struct{}, len(passages))
	citations := make([]string, 0, len(passages))
	for _, passage := range passages {
		if passage.DocumentName == "" {
			continue
		}
		if _, ok := seen[passage.DocumentName]; ok {
			continue
		}
		seen[passage.DocumentName] = struct{}{}
		citations = append(citations, passage.DocumentName)
	}
	return citations
}
