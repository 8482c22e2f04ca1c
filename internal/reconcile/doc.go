// Package reconcile keeps the positional indices of the link graph consistent.
//
// Every link carries three positions: Order inside its antiquarian (or inside the group of
// unattributed links), WorkOrder inside its work and OrderInBook inside its book. Works carry
// their position inside each antiquarian through the WorkLink edge and books their position
// inside their work. Any structural edit can invalidate some of these, so every mutation
// emits an event and the Dispatcher runs the matching procedures of the Engine inside the
// same transaction, before the edit is committed.
//
// Procedures never trust the previous state: they reload the scope, sort it with the named
// comparators of package ordering and rewrite only the rows whose position changed. Running
// any of them twice on a consistent graph writes nothing.
//
// Dispatch runs in two phases. Handlers first perform the structural work an event needs
// (Unknown Work creation, link copies, collation) and record the scopes it touched. Settle
// then repairs those scopes leaves first: book lists, work and book positions, the work
// order of each antiquarian, the link order of each antiquarian and finally the
// unattributed links.
package reconcile
