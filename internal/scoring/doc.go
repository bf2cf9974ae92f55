// Package scoring implements the lead scoring engine: a pure score
// calculator over a contact's event ledger, and an orchestrating engine
// that applies engagement events, manual adjustments and full
// recalculations against a persistent store.
//
// The engine is purely reactive. It is invoked by the tracking pipeline
// (email opens, link clicks, form submissions) and by the admin API; it
// never polls, subscribes, or decides when to fire.
//
// Concurrency contract: all score mutations for the same contact are
// linearized behind a per-contact mutex, and the contact_scores version
// column turns any cross-process race into ErrConflict, which callers
// retry. Mutations for distinct contacts never block each other.
package scoring
