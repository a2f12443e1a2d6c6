package tracker

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/ctckit/observability"
	"github.com/kbukum/ctckit/server"
	"github.com/kbukum/ctckit/validation"
)

// RegisterBoard mounts the read-only board routes on engine:
//
//	GET /runs
//	GET /runs/:id
//	GET /runs/:id/scalars?tag=
//	GET /runs/:id/texts
func RegisterBoard(engine *gin.Engine, store *Store) {
	b := &board{store: store}
	runs := engine.Group("/runs")
	runs.GET("", b.listRuns)
	runs.GET("/:id", b.getRun)
	runs.GET("/:id/scalars", b.listScalars)
	runs.GET("/:id/texts", b.listTexts)
}

// HealthChecker reports the store's database health.
func HealthChecker(store *Store) func(ctx context.Context) []observability.Health {
	return func(ctx context.Context) []observability.Health {
		return []observability.Health{store.DB().CheckHealth(ctx)}
	}
}

type board struct {
	store *Store
}

func (b *board) listRuns(c *gin.Context) {
	runs, err := b.store.Runs(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondList(c, runs, len(runs))
}

func (b *board) getRun(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	run, err := b.store.Run(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, run)
}

func (b *board) listScalars(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if _, err := b.store.Run(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	scalars, err := b.store.Scalars(c.Request.Context(), id, c.Query("tag"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondList(c, scalars, len(scalars))
}

func (b *board) listTexts(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if _, err := b.store.Run(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	texts, err := b.store.Texts(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondList(c, texts, len(texts))
}
