// Package grid implements the document viewer: an editable spreadsheet grid
// with keyboard navigation, resizable columns and change detection, and a
// bounded pager for PDF documents.
package grid
