// Command ctckit trains and evaluates CTC speech recognition downstreams and
// serves the experiment board.
package main

import (
	"context"
	"os"

	_ "github.com/kbukum/ctckit/storage/local"
	_ "github.com/kbukum/ctckit/storage/s3"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
