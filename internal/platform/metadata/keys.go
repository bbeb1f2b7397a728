package metadata

// --- SQLite Keys ---
// These keys are used for the 'key' column in the 'metadata' table.
const (
	// LastReconcileAtKey stores the RFC3339 time at which the last reconciliation
	// pass finished successfully.
	LastReconcileAtKey = "last_reconcile_at"

	// LastReconcileRepairsKey stores how many rows the last reconciliation pass
	// had to repair. A steadily non-zero value means live writes keep drifting.
	LastReconcileRepairsKey = "last_reconcile_repairs"

	// TotalReconcileRepairsKey accumulates repairs across all passes.
	TotalReconcileRepairsKey = "total_reconcile_repairs"
)
