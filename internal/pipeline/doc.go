// Package pipeline defines the records and collaborator interfaces shared by the
// acquisition stages: registry, fetcher, snapshot store, extractor, quality gate,
// review workflow and publisher.
//
// Stages depend on the store interfaces declared here rather than on a concrete
// database so each stage can be exercised in isolation against the in-memory
// implementation in internal/storage/memory.
package pipeline
