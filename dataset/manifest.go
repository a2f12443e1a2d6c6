package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kbukum/ctckit/errors"
)

// Entry is one utterance of a manifest.
type Entry struct {
	// File is the audio path relative to the corpus root.
	File string
	// Length is the number of samples, used for bucketing.
	Length int
	// Text is the transcription.
	Text string
}

// Manifest columns.
const (
	ColumnFile   = "file"
	ColumnLength = "length"
	ColumnText   = "text"
)

// ReadManifest parses a CSV file with a header naming at least the file,
// length and text columns.
func ReadManifest(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("manifest", path)
		}
		return nil, errors.IOError("open manifest", err)
	}
	defer f.Close()
	return parseManifest(f, path)
}

func parseManifest(r io.Reader, name string) ([]Entry, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.InvalidInput("manifest", fmt.Sprintf("%s: missing header", name)).WithCause(err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{ColumnFile, ColumnLength, ColumnText} {
		if _, ok := cols[want]; !ok {
			return nil, errors.InvalidInput("manifest", fmt.Sprintf("%s: no %q column", name, want))
		}
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, errors.InvalidInput("manifest", fmt.Sprintf("%s:%d: %v", name, line, err)).WithCause(err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(rec[cols[ColumnLength]]))
		if err != nil || n < 0 {
			return nil, errors.InvalidInput("manifest", fmt.Sprintf("%s:%d: bad length %q", name, line, rec[cols[ColumnLength]]))
		}
		entries = append(entries, Entry{
			File:   strings.TrimSpace(rec[cols[ColumnFile]]),
			Length: n,
			Text:   strings.TrimSpace(rec[cols[ColumnText]]),
		})
	}
}
