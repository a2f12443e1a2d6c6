// Package text converts transcripts to label ids and back.
//
// A vocabulary file lists one token per line. Ids 0, 1 and 2 are reserved
// for <pad>, <eos> and <unk>; file tokens follow in file order. The pad id
// doubles as the CTC blank.
//
// Two modes are supported: "character" (one token per rune, "|" stands for
// a space) and "word" (whitespace-separated tokens).
package text
