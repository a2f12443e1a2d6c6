// Package ctc implements the Connectionist Temporal Classification loss
// and greedy decoding.
//
// The loss runs the forward-backward recursion in log space over the
// blank-extended label sequence and returns, per utterance, the negative
// log-likelihood together with its gradient with respect to the frame
// log-probabilities.
package ctc
