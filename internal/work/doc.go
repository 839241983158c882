// Package work implements the provider sync pass.
//
// # Account State Machine
//
// Accounts are processed strictly one after another. For each account:
//
//	CHECK_DIVIDENDS_DUE -> FETCH_DIVIDENDS | SKIP_DIVIDENDS
//	CHECK_POSITIONS_DUE -> FETCH_SNAPSHOT  | SKIP_POSITIONS
//	ENQUEUE -> RECONCILE_* -> UPDATE_*_META
//	DRAIN -> ACCOUNT_DONE
//
// Both provider fetches complete before anything is enqueued, so a fetch
// failure leaves the account's store records and metadata untouched.
//
// # Batching
//
// Per account the queue receives one job per dividend, one dividends metadata
// update, one snapshot job and one positions metadata update, in that order.
// Jobs run FIFO with bounded concurrency. Metadata jobs are admitted after
// their item jobs; with StrictMetadataOrdering they also wait for those item
// jobs to finish. The queue is drained before "Account processing completed"
// is logged and before the next account starts.
//
// # Failure Policy
//
// Per-item errors are counted in the stats and never abort siblings. Provider
// and metadata errors fail the account; by default that aborts the whole run.
// ContinueOnAccountError records the failure and moves on, and Run returns the
// joined errors at the end.
package work
