// Package expert is the CTC downstream adapter.
//
// An Expert projects frozen upstream features to the model width, runs a
// sequence model chosen by name, scores it with a CTC loss and greedy
// decoding, and accumulates per-batch records. At the end of a split,
// LogRecords averages the numeric records, logs text samples and reports
// which checkpoint labels the caller should save.
//
// An Expert is not safe for concurrent use: Forward keeps layer caches
// for the matching Loss.Backward and LogRecords updates the best score.
package expert
