// Package asr provides the sequence models that sit between the feature
// projector and the CTC loss.
//
// A model maps a batch of right-padded T×D feature matrices to per-frame
// class logits and the (possibly reduced) valid length of every output.
// Models are selected by name through a Registry of factories; the
// built-in ones are "Linear" (a frame-wise MLP) and "RNNs" (stacked LSTM
// or Elman layers with optional frame down-sampling).
//
// Only the valid frames of each utterance are processed. Padded output
// rows are zero and receive no gradient.
package asr
