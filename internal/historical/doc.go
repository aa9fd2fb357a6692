// Package historical follows one tracked numeric column across an ordered
// list of table versions.
//
// Trace folds the versions oldest to newest, keeps every key whose tracked
// value took at least two distinct values, derives the delta and percent
// change trajectories and ranks the keys by an anomaly score that weighs
// how often a value changed against how far it moved. RenderMarkdown turns
// the ranked result into the pipe table embedded in report prompts.
package historical
