// Package storage persists checkpoints and other run artifacts as objects.
//
// Backends register themselves by provider name; import the ones you need:
//
//	import (
//	    _ "github.com/kbukum/ctckit/storage/local"
//	    _ "github.com/kbukum/ctckit/storage/s3"
//	)
//
//	st, err := storage.New(ctx, storage.Config{Provider: "s3", Bucket: "ckpts"}, log)
//	err = storage.WriteBytes(ctx, st, "run-1/states-1000.ckpt", data)
package storage
