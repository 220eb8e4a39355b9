// Package vault implements the client side of the secret-sharing data store:
// the fan-out writer, the fan-out reader with its assembler, and the generic
// typed collection client built on top of them.
//
// Every write splits each secret field into N shares and stores one partial
// record per node; the write counts as durable only when all N nodes
// acknowledge, because reconstruction needs every share. Every read fetches
// from all N nodes in parallel under independent deadlines, correlates the
// partial records by identifier, and decrypts only groups that are complete.
// A record present on fewer than N nodes is reported as unreconstructable,
// never decrypted into a guess.
//
// Distinct records are fully independent: they may be written and read
// concurrently without coordination, and shares are correlated strictly by
// record identifier and node slot.
package vault
