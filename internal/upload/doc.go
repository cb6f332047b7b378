// Package upload validates, stores and lists the documents a user uploads:
// price-list and quotation workbooks and PDF files.
//
// Validation runs before any network call. Objects are stored under
// "{userID}/{unixMillis}-{name}" and never overwritten on upload. Workbooks
// uploaded as price lists or quotations are also recorded and sent to the
// backend for ingestion.
package upload
