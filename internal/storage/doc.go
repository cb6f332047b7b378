// Package storage provides object storage for uploaded documents.
//
// Objects live in named buckets under slash-separated keys. LocalStore keeps
// them on disk and S3Store in any S3-compatible service. Both report
// ErrNotFound and ErrExists the same way.
package storage
