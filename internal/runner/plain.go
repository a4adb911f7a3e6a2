package runner

import (
	"context"
	"strings"

	"github.com/ppiankov/geminirun/internal/request"
)

// Plain runs spec with --output-format text and returns stdout trimmed.
// No JSON is involved; failures come only from launch, exit status,
// or cancellation.
func (c *Client) Plain(ctx context.Context, spec *request.Spec) (string, error) {
	inv, err := c.start(ctx, spec, ModePlain)
	if err != nil {
		return "", err
	}
	defer func() { _ = inv.close() }()

	var b strings.Builder
	for rec := range inv.records {
		b.Write(rec)
	}
	if err := inv.finish(); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
