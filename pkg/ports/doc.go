/*
Package ports defines the driven ports (interfaces) of the sluice engine.

These interfaces decouple the run host from concrete backends, so the same
pipeline can lock its cache root with a local file lock or with Redis, and
journal its runs in SQLite or in memory.

# Key Interfaces

  - DistributedLocker: serializes runs that share a cache root.
  - RunJournal: records run history and counters.

Adapters verify themselves against the shared suites RunLockerContract and
RunJournalContract.
*/
package ports
