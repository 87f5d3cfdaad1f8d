// Package aggregate groups wells by their plate metadata and summarizes
// per-well metrics across each group.
//
// Groups are keyed by the non-empty label, concentration and sample id of a
// well joined with " | ". Group order follows the first well encountered in
// plate order A1..H12, and member wells keep plate order. NaN inputs are
// never dropped from a summary: a NaN metric makes the group statistic NaN.
//
// The ionomycin normalizer expresses each well's peak as a percentage of the
// mean ionomycin peak recorded for the same sample id.
package aggregate
