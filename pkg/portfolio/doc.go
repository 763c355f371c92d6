// Package portfolio provides the content registry behind the portfolio site:
// one JSON document per collection (drawings, paintings, texts, ...) stored in
// a blob store and listing the records shown in the galleries.
//
// Every mutation is a read-modify-write over that document. Registry.Load
// returns the document together with the version token the store reported,
// the pure helpers (Append, Remove, Renumber, Reorder, Replace) compute a new
// in-memory document, and Registry.Commit writes it back only if the stored
// version is still the one that was loaded. Registry.Update wraps the three
// steps in a bounded retry loop for callers that can simply reapply their
// mutation after a conflict.
//
// # Linearizability
//
// Commit is a true check-and-set when the store supports conditional writes
// (memory, s3, postgres, mongo). The filesystem store emulates it by
// re-reading under a process-local lock, which is linearizable within one
// process but only best effort when several processes share a directory.
//
// Binary assets referenced by records are uploaded directly by clients using
// time-boxed URLs issued by the BlobStore and are never coordinated by the
// registry.
package portfolio
