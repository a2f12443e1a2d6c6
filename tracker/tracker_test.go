package tracker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/ctckit/database"
	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/server"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Path: database.MemoryPath, LogLevel: "silent"}, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	w, err := store.StartRun(ctx, "exp", "train")
	if err != nil {
		t.Fatal(err)
	}
	for step, v := range []float64{3, 2, 1} {
		if err := w.AddScalar(ctx, "ctc-toy/train-loss", v, step*10); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.AddScalar(ctx, "ctc-toy/dev-wer", 0.5, 20); err != nil {
		t.Fatal(err)
	}
	if err := w.AddText(ctx, "ctc-toy/dev-a", "**hypothesis**: x<br>**groundtruth**: y", 20); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(ctx); err != nil {
		t.Fatal(err)
	}

	all, err := store.Scalars(ctx, w.RunID(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d scalars, want 4", len(all))
	}
	loss, err := store.Scalars(ctx, w.RunID(), "ctc-toy/train-loss")
	if err != nil {
		t.Fatal(err)
	}
	if len(loss) != 3 || loss[0].Value != 3 || loss[2].Step != 20 {
		t.Fatalf("unexpected loss series: %+v", loss)
	}
	texts, err := store.Texts(ctx, w.RunID())
	if err != nil || len(texts) != 1 {
		t.Fatalf("texts = %v, %v", texts, err)
	}
	run, err := store.Run(ctx, w.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if run.FinishedAt == nil || run.Name != "exp" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if _, err := store.Run(ctx, uuid.New()); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

type failing struct{ calls int }

func (f *failing) AddScalar(context.Context, string, float64, int) error {
	f.calls++
	return stderrors.New("scalar failed")
}

func (f *failing) AddText(context.Context, string, string, int) error {
	f.calls++
	return nil
}

func TestMulti(t *testing.T) {
	a, b := &failing{}, &failing{}
	w := Multi(a, NewConsole(logger.Nop()), b)
	if err := w.AddScalar(context.Background(), "t", 1, 0); err == nil {
		t.Error("expected joined error")
	}
	if err := w.AddText(context.Background(), "t", "x", 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if a.calls != 2 || b.calls != 2 {
		t.Errorf("calls = %d, %d; every writer must be called", a.calls, b.calls)
	}
}

func TestMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMeter(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = m.AddScalar(ctx, "ctc-toy/dev-wer", 0.4, 10)
	_ = m.AddScalar(ctx, "ctc-toy/dev-wer", 0.3, 20)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "ctc.scalar" {
				continue
			}
			g, ok := md.Data.(metricdata.Gauge[float64])
			if !ok || len(g.DataPoints) != 1 {
				t.Fatalf("unexpected data %T", md.Data)
			}
			if g.DataPoints[0].Value != 0.3 {
				t.Errorf("gauge = %g, want the last value 0.3", g.DataPoints[0].Value)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("ctc.scalar not exported")
	}
}

func TestBoard(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	w, err := store.StartRun(ctx, "exp", "train")
	if err != nil {
		t.Fatal(err)
	}
	_ = w.AddScalar(ctx, "a", 1, 1)
	_ = w.AddScalar(ctx, "b", 2, 1)
	_ = w.AddText(ctx, "c", "hello", 1)

	srv := server.New(server.Config{}, logger.Nop())
	srv.ApplyDefaults("board", HealthChecker(store))
	RegisterBoard(srv.GinEngine(), store)

	get := func(path string) (int, server.DataResponse) {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		var body server.DataResponse
		_ = json.Unmarshal(rr.Body.Bytes(), &body)
		return rr.Code, body
	}

	tests := []struct {
		path  string
		code  int
		total int
	}{
		{"/runs", http.StatusOK, 1},
		{"/runs/" + w.RunID().String() + "/scalars", http.StatusOK, 2},
		{"/runs/" + w.RunID().String() + "/scalars?tag=b", http.StatusOK, 1},
		{"/runs/" + w.RunID().String() + "/texts", http.StatusOK, 1},
		{"/runs/not-a-uuid/texts", http.StatusBadRequest, -1},
		{"/runs/" + uuid.NewString() + "/scalars", http.StatusNotFound, -1},
		{"/runs/" + w.RunID().String(), http.StatusOK, -1},
		{"/healthz", http.StatusOK, -1},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(tt.path)
			if code != tt.code {
				t.Fatalf("status = %d, want %d", code, tt.code)
			}
			if tt.total >= 0 && (body.Meta == nil || body.Meta.Total != tt.total) {
				t.Fatalf("meta = %+v, want total %d", body.Meta, tt.total)
			}
		})
	}
}
