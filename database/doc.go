// Package database opens the SQLite experiment store through GORM.
//
// It wraps gorm.DB with connection pooling, a zerolog-backed GORM logger,
// transaction helpers, health reporting and AppError translation.
//
//	db, err := database.Open(ctx, database.Config{Path: "runs/ctckit.db"}, log)
//	defer db.Close()
//	err = db.AutoMigrate(&Run{}, &Scalar{})
//
// Path ":memory:" opens a private in-memory database pinned to a single
// connection, which is what the tests use.
package database
