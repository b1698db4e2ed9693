// Package metrics exposes Prometheus collectors for webhook ingestion,
// entitlement reconciliation and feature gate decisions.
//
// The hook-shaped methods plug straight into the components they observe:
//
//	m := metrics.New()
//	engine := entitlement.NewEngine(store, entitlement.WithConflictHook(m.ReconcileConflict))
//	g, _ := gate.New(engine, ledger, limits, gate.WithDecisionHook(m.GateDecision))
//	router.Handle("/metrics", m.Handler())
package metrics
