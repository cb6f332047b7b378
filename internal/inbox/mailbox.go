package inbox

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
)

const (
	DefaultPageSize = 20
	// detailConcurrency bounds in-flight detail requests per page.
	detailConcurrency = 10
)

// Source lists message ids and fetches list rows.
type Source interface {
	ListMessageIDs(ctx context.Context, query, pageToken string, pageSize int64) ([]string, string, error)
	GetSummary(ctx context.Context, id string) (Summary, error)
}

// Snapshot is a copy of the mailbox state.
type Snapshot struct {
	Messages []Summary `json:"messages"`
	Page     int       `json:"page"`
	HasMore  bool      `json:"hasMore"`
}

// Mailbox is the in-memory message list. Load fetches the first page and
// LoadMore appends the next one.
type Mailbox struct {
	source   Source
	query    string
	pageSize int64
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	mu        sync.Mutex
	messages  []Summary
	seen      map[string]bool
	nextToken string
	page      int
	hasMore   bool
}

// MailboxOptions configures NewMailbox.
type MailboxOptions struct {
	Query    string
	PageSize int64
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
}

func NewMailbox(source Source, opts MailboxOptions) *Mailbox {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Mailbox{
		source:   source,
		query:    opts.Query,
		pageSize: opts.PageSize,
		logger:   logging.WithComponent(opts.Logger, "mailbox"),
		metrics:  opts.Metrics,
		seen:     map[string]bool{},
	}
}

// Load replaces the list with the first page. On failure the previous list
// is kept and the error is returned after being logged.
func (m *Mailbox) Load(ctx context.Context) (Snapshot, error) {
	rows, next, err := m.fetch(ctx, "")
	if err != nil {
		return m.Snapshot(), err
	}

	m.mu.Lock()
	m.messages = m.messages[:0]
	m.seen = map[string]bool{}
	m.appendLocked(rows)
	m.page = 1
	m.nextToken = next
	m.hasMore = next != ""
	m.mu.Unlock()

	m.metrics.RecordMailboxSync(ctx, instrumentation.StatusSuccess, len(rows))
	return m.Snapshot(), nil
}

// LoadMore appends the next page. It is a no-op when the provider reported
// no continuation token.
func (m *Mailbox) LoadMore(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	token, more := m.nextToken, m.hasMore
	m.mu.Unlock()
	if !more {
		return m.Snapshot(), nil
	}

	rows, next, err := m.fetch(ctx, token)
	if err != nil {
		return m.Snapshot(), err
	}

	m.mu.Lock()
	added := m.appendLocked(rows)
	m.page++
	m.nextToken = next
	m.hasMore = next != ""
	m.mu.Unlock()

	m.metrics.RecordMailboxSync(ctx, instrumentation.StatusSuccess, added)
	return m.Snapshot(), nil
}

// Snapshot returns a copy of the current state.
func (m *Mailbox) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Messages: append([]Summary{}, m.messages...),
		Page:     m.page,
		HasMore:  m.hasMore,
	}
}

// MarkRead clears the unread flag of a listed message.
func (m *Mailbox) MarkRead(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Unread = false
			return
		}
	}
}

func (m *Mailbox) appendLocked(rows []Summary) int {
	added := 0
	for _, r := range rows {
		if m.seen[r.ID] {
			continue
		}
		m.seen[r.ID] = true
		m.messages = append(m.messages, r)
		added++
	}
	return added
}

// fetch lists one page and fetches every row in parallel. The page is
// merged only when every detail request succeeded.
func (m *Mailbox) fetch(ctx context.Context, pageToken string) ([]Summary, string, error) {
	ids, next, err := m.source.ListMessageIDs(ctx, m.query, pageToken, m.pageSize)
	if err != nil {
		m.fail(ctx, "list", err)
		return nil, "", err
	}

	rows := make([]Summary, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			s, err := m.source.GetSummary(gctx, id)
			if err != nil {
				return err
			}
			rows[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.fail(ctx, "detail", err)
		return nil, "", err
	}
	return rows, next, nil
}

func (m *Mailbox) fail(ctx context.Context, stage string, err error) {
	m.metrics.RecordMailboxSync(ctx, instrumentation.StatusError, 0)
	m.logger.Warn("mailbox page load failed",
		logging.Operation("mailbox."+stage),
		logging.Status(logging.StatusError),
		logging.Err(err))
}
