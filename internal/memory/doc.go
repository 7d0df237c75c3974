// Package memory implements the semantic memory service.
//
// Memories are short text facts stored together with an embedding of their
// content. The Service validates and deduplicates incoming facts, embeds
// them with the model picked by the capability resolver, and answers
// similarity queries by a linear cosine scan over every stored record.
//
// Storage backends live in subpackages (sqlite, postgres, inmem) and only
// implement Store; all policy lives in Service.
package memory
