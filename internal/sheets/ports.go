// Package sheets defines the outbound ports for spreadsheet export.
package sheets

import (
	"context"

	"lifehub/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter appends a committed transaction to a ledger sheet.
	TransactionExporter interface {
		ExportTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// SnapshotExporter appends a net worth snapshot to a history sheet.
	SnapshotExporter interface {
		ExportSnapshot(ctx context.Context, s core.NetWorthSnapshot) (rowRef string, err error)
	}

	// Exporter is implemented by adapters that handle both.
	Exporter interface {
		TransactionExporter
		SnapshotExporter
	}
)
