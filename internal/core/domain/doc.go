// Package domain contains the core business entities for docquery:
// projects, documents, chunks, passages and the error taxonomy.
// It has no dependencies on adapters or infrastructure.
package domain
