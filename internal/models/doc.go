// Package models defines the records that flow through the recently played popularity job.
//
// Records move through three shapes, one per pipeline stage:
//
//  1. [PlayEvent] : one play as reported by the music service, with nil marking any value the service omitted
//  2. [FlatRecord] : the tabular form produced by extraction (artists joined into one string)
//  3. [ClassifiedRecord] : a validated row with its [PopularityCategory], ready to be appended
//
// [Run] is the persisted summary of one pipeline execution.
package models
