// Package tasks runs the recently-played popularity job with real-time progress reporting.
//
// # Stages
//
// [PopularityPipeline] runs three stages strictly in sequence:
//
//  1. [PopularityPipeline.Extract] : one request to a [services.RecentlyPlayedSource]
//     - Flattens each play event into a [models.FlatRecord]
//     - Artist names are joined with ", " in source order
//     - Failures are wrapped with [ErrExtraction] and not retried
//
//  2. [Transform] : the data-quality gate, a pure function
//     - An empty batch yields [EmptyResult], which is not an error
//     - Repeated played_at values fail with [ErrDuplicateKey]
//     - Missing fields fail with [ErrNullValue]
//     - Each row is labelled by [models.Categorize]
//
//  3. [PopularityPipeline.Load] : appends a [ValidatedResult] through a [RecordAppender]
//     - [EmptyResult] is skipped without touching the store
//     - Failures are wrapped with [ErrLoad]
//
// # Progress Reporting
//
// [PopularityPipeline.Run] sends a [ProgressUpdate] at every [Phase] transition. Updates use select with
// default so a slow or absent reader never blocks the run.
//
// # Run History
//
// The optional [RunRecorder] stores one row per run, and the optional [Observer] receives the final [Report].
// Recorder errors are logged and never fail a run.
//
// Duplicate played_at values are only detected within a batch. Running the job twice over the same
// window appends the same plays again.
package tasks
