// Package export defines the outbound statement export port and its
// adapters. The worker pushes every computed statement batch through a
// StatementWriter so balances end up somewhere humans already look.
package export

import (
	"context"

	"spendview/internal/core"
)

// StatementWriter appends a computed statement batch to an external sink.
type StatementWriter interface {
	AppendStatements(ctx context.Context, asOf string, statements []core.CardStatement) error
}
