package text

import (
	"bufio"
	"os"
	"strings"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/validation"
)

// Reserved ids.
const (
	PadIdx = 0
	EosIdx = 1
	UnkIdx = 2
)

// Reserved tokens.
const (
	PadToken   = "<pad>"
	EosToken   = "<eos>"
	UnkToken   = "<unk>"
	SpaceToken = "|"
)

// Modes.
const (
	ModeCharacter = "character"
	ModeWord      = "word"
)

// Encoder maps transcripts to label ids.
type Encoder interface {
	// VocabSize is the number of ids, reserved ones included.
	VocabSize() int
	// PadIdx is the padding id, also used as the CTC blank.
	PadIdx() int
	// Encode converts a transcript to ids. Unknown tokens map to UnkIdx.
	Encode(s string) []int
	// Decode converts ids to text. Pad ids are skipped and decoding stops at
	// EosIdx. With ignoreRepeat an id equal to its predecessor is dropped.
	Decode(ids []int, ignoreRepeat bool) string
	// TokenType reports the mode.
	TokenType() string
}

// Config selects and locates the vocabulary.
type Config struct {
	Mode      string `mapstructure:"mode" validate:"required,oneof=character word"`
	VocabFile string `mapstructure:"vocab_file" validate:"required"`
}

// LoadEncoder reads cfg.VocabFile and builds the encoder for cfg.Mode.
func LoadEncoder(cfg Config) (Encoder, error) {
	if err := validation.Validate(cfg); err != nil {
		return nil, err
	}
	tokens, err := readVocab(cfg.VocabFile)
	if err != nil {
		return nil, err
	}
	return NewEncoder(cfg.Mode, tokens)
}

// NewEncoder builds an encoder from an in-memory vocabulary.
func NewEncoder(mode string, tokens []string) (Encoder, error) {
	v := newVocab(tokens)
	switch strings.ToLower(mode) {
	case ModeCharacter:
		for _, tok := range tokens {
			if len([]rune(tok)) != 1 {
				return nil, errors.InvalidConfig("text.vocab_file",
					"character vocabulary token "+quote(tok)+" is not a single character")
			}
		}
		return &characterEncoder{vocab: v}, nil
	case ModeWord:
		return &wordEncoder{vocab: v}, nil
	default:
		return nil, errors.InvalidConfig("text.mode", "unsupported mode "+quote(mode))
	}
}

func readVocab(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("vocabulary", path).WithCause(err)
		}
		return nil, errors.IOError("open vocabulary", err)
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(tok) == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.IOError("read vocabulary", err)
	}
	if len(tokens) == 0 {
		return nil, errors.InvalidConfig("text.vocab_file", path+" is empty")
	}
	return tokens, nil
}

func quote(s string) string { return "\"" + s + "\"" }

// vocab holds the id mapping shared by both modes.
type vocab struct {
	idToToken []string
	tokenToID map[string]int
}

func newVocab(tokens []string) vocab {
	v := vocab{
		idToToken: append([]string{PadToken, EosToken, UnkToken}, tokens...),
		tokenToID: make(map[string]int, len(tokens)+3),
	}
	for id, tok := range v.idToToken {
		if _, dup := v.tokenToID[tok]; !dup {
			v.tokenToID[tok] = id
		}
	}
	return v
}

func (v vocab) VocabSize() int { return len(v.idToToken) }
func (v vocab) PadIdx() int    { return PadIdx }

func (v vocab) id(tok string) int {
	if id, ok := v.tokenToID[tok]; ok {
		return id
	}
	return UnkIdx
}

// tokens walks ids with the shared skip/stop rules.
func (v vocab) tokens(ids []int, ignoreRepeat bool) []string {
	out := make([]string, 0, len(ids))
	for t, id := range ids {
		if id == PadIdx || (ignoreRepeat && t > 0 && id == ids[t-1]) {
			continue
		}
		if id == EosIdx {
			break
		}
		if id < 0 || id >= len(v.idToToken) {
			out = append(out, UnkToken)
			continue
		}
		out = append(out, v.idToToken[id])
	}
	return out
}

type characterEncoder struct{ vocab }

func (e *characterEncoder) TokenType() string { return ModeCharacter }

func (e *characterEncoder) Encode(s string) []int {
	ids := make([]int, 0, len(s))
	for _, r := range strings.TrimSpace(s) {
		tok := string(r)
		if r == ' ' {
			if _, ok := e.tokenToID[" "]; !ok {
				tok = SpaceToken
			}
		}
		ids = append(ids, e.id(tok))
	}
	return ids
}

func (e *characterEncoder) Decode(ids []int, ignoreRepeat bool) string {
	var b strings.Builder
	for _, tok := range e.tokens(ids, ignoreRepeat) {
		if tok == SpaceToken {
			tok = " "
		}
		b.WriteString(tok)
	}
	return b.String()
}

type wordEncoder struct{ vocab }

func (e *wordEncoder) TokenType() string { return ModeWord }

func (e *wordEncoder) Encode(s string) []int {
	words := strings.Fields(s)
	ids := make([]int, len(words))
	for i, w := range words {
		ids[i] = e.id(w)
	}
	return ids
}

func (e *wordEncoder) Decode(ids []int, ignoreRepeat bool) string {
	return strings.Join(e.tokens(ids, ignoreRepeat), " ")
}
