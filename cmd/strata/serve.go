package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"

	"github.com/quarryhq/strata"
	"github.com/quarryhq/strata/aggregate"
)

// serveCmd exposes the configured backend over HTTP using the same
// wire shapes the http backend consumes, so one strata process can front
// another's storage.
var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "Serve the configured backend over HTTP",
	Action: serveCommand,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "Listen address",
			Value:   ":8080",
		},
	},
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	server := &http.Server{
		Addr:    c.String("addr"),
		Handler: newRouter(store),
	}

	errCh := make(chan error, 1)
	go func() {
		store.Logger().Info("listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newRouter(store *strata.Store) http.Handler {
	h := &storeHandler{store: store}

	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Post("/{collection}", h.insert)
	r.Post("/{collection}/query", h.query)
	r.Post("/{collection}/update", h.update)
	r.Post("/{collection}/remove", h.remove)
	r.Post("/{collection}/aggregate", h.aggregate)
	return r
}

type storeHandler struct {
	store *strata.Store
}

func (h *storeHandler) collection(w http.ResponseWriter, r *http.Request) (*strata.Collection, bool) {
	c, err := h.store.Collection(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return c, true
}

func (h *storeHandler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *storeHandler) insert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []strata.Record `json:"records"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	if err := c.Insert(r.Context(), req.Records...); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *storeHandler) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter   strata.Filter `json:"filter"`
		Page     int           `json:"page"`
		PageSize int           `json:"pageSize"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	records, err := c.Find(r.Context(), req.Filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	total := int64(len(records))
	if req.PageSize > 0 {
		start := req.Page * req.PageSize
		if start > len(records) {
			start = len(records)
		}
		end := start + req.PageSize
		if end > len(records) {
			end = len(records)
		}
		records = records[start:end]
	}
	if records == nil {
		records = []strata.Record{}
	}
	writeJSON(w, map[string]any{"records": records, "total": total})
}

func (h *storeHandler) update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter  strata.Filter `json:"filter"`
		Changes strata.Record `json:"changes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	n, err := c.Update(r.Context(), req.Filter, req.Changes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]int64{"modified": n})
}

func (h *storeHandler) remove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter strata.Filter `json:"filter"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	n, err := c.Remove(r.Context(), req.Filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]int64{"removed": n})
}

func (h *storeHandler) aggregate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter strata.Filter  `json:"filter"`
		Spec   map[string]any `json:"spec"`
		Sort   string         `json:"sort"`
		Limit  int            `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	result, err := c.Aggregate(r.Context(), req.Filter, req.Spec, aggregate.RunOptions{
		Sort:  aggregate.Sort(req.Sort),
		Limit: req.Limit,
	})
	if err != nil {
		var vErr *aggregate.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, result.AsMap())
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	http.Error(w, err.Error(), status)
}
