// Package workflow runs an analysis end to end: it loads the configured
// table versions, applies the formatting rules, picks the comparison or the
// historical workflow from the number of versions, asks the language model
// for a written analysis and saves the prompt, the answer and the final
// markdown report.
//
// Two versions run the comparison workflow, which diffs them record by
// record. Three or more run the historical workflow, which traces the
// tracked value column across every version and ranks the changed keys.
package workflow
