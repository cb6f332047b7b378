package quotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
)

// Backend generates quotation text from an email body.
type Backend interface {
	// GenerateQuotation returns the undecoded response body.
	GenerateQuotation(ctx context.Context, accessToken, emailContent string) ([]byte, error)
}

// Generation is the result of one generator call.
type Generation struct {
	Table *Table `json:"table"`
	// Degraded is set when the generated text did not decode and the
	// table holds the placeholder row.
	Degraded bool   `json:"degraded"`
	Reply    string `json:"reply"`
	Raw      string `json:"raw"`
}

// Generator turns email text into an editable quotation table.
type Generator struct {
	backend Backend
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	now     func() time.Time
}

func NewGenerator(backend Backend, logger *slog.Logger, metrics *instrumentation.Metrics) *Generator {
	return &Generator{
		backend: backend,
		logger:  logging.WithComponent(logger, "quotation"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Generate calls the backend and parses its answer. A malformed answer is
// not an error, whether the envelope or the quotation inside it is broken;
// it yields the placeholder table with Degraded set.
func (g *Generator) Generate(ctx context.Context, accessToken, emailContent string) (*Generation, error) {
	body, err := g.backend.GenerateQuotation(ctx, accessToken, emailContent)
	if err != nil {
		g.metrics.RecordQuotation(ctx, instrumentation.StatusError)
		return nil, fmt.Errorf("failed to generate quotation: %w", err)
	}

	env, degraded := ParseResponse(body)
	if degraded {
		g.metrics.RecordQuotation(ctx, "degraded")
		g.logger.Warn("generated quotation did not decode, using placeholder row",
			logging.Operation("quotation.generate"),
			slog.Int("body_length", len(body)))
	} else {
		g.metrics.RecordQuotation(ctx, instrumentation.StatusSuccess)
	}

	t := NewTable(env, g.now())
	return &Generation{
		Table:    t,
		Degraded: degraded,
		Reply:    ReplyText(t.CompanyName),
		Raw:      string(body),
	}, nil
}
