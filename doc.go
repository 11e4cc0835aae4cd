// Package creditnexus is the client-side orchestration layer of the
// CreditNexus suite.
//
// It coordinates multi-source credit-agreement extraction, reconciliation
// and cross-application messaging:
//
//   - a context bus holding the last broadcast context of the suite
//   - an intent router mapping inbound intents onto a view and a record
//   - a source collector with one extraction result per source kind
//   - a conflict detector comparing the sources field by field
//   - a fusion coordinator calling the backend fusion endpoint
//   - a workflow monitor polling long-running backend tasks
//
// Usage:
//
//	orc, err := creditnexus.New(creditnexus.WithConfig(cfg))
//	if err != nil {
//		return err
//	}
//	defer orc.Close()
//
//	_ = orc.Collector.Upsert(core.SourceAudio, audioEntry)
//	_ = orc.Collector.Upsert(core.SourceText, textEntry)
//	conflicts := orc.Conflicts()
//	result, err := orc.Fuse(ctx)
package creditnexus
