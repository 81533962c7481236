package cart

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"CandleShop/internal/catalog"
	"CandleShop/internal/session"
	"CandleShop/pkg/kit"
)

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// Server exposes the cart over HTTP. The store comes from the request
// context, so the routes must be mounted behind Provide.
type Server struct {
	Catalog Catalog
	Log     *zap.Logger

	// LoadWait bounds how long a request waits for the initial cart load
	// before it is answered with 503. Defaults to defaultLoadWait.
	LoadWait time.Duration
}

const defaultLoadWait = 2 * time.Second

var errInsufficientStock = errors.New("insufficient stock")

type addReq struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(WaitLoaded(s.LoadWait))

	r.Get("/", s.list)
	r.Delete("/items/{id}", s.remove)
	r.Patch("/items/{id}", s.updateQuantity)

	r.Group(func(pr chi.Router) {
		pr.Use(session.Required)
		pr.Get("/mine", s.mine)
		pr.Post("/items", s.add)
	})

	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, FromContext(r.Context()).Items())
}

func (s *Server) mine(w http.ResponseWriter, r *http.Request) {
	u, _ := session.UserFromContext(r.Context())
	kit.WriteJSON(w, http.StatusOK, FromContext(r.Context()).ItemsForUser(u.ID))
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	u, _ := session.UserFromContext(r.Context())
	store := FromContext(r.Context())

	var req addReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.ID <= 0 || req.Quantity < 1 {
		kit.WriteError(w, r, http.StatusBadRequest, "id and quantity >= 1 required", nil)
		return
	}

	p, err := s.Catalog.GetProduct(r.Context(), req.ID)
	if err != nil {
		s.writeCatalogError(w, r, err, req.ID)
		return
	}
	size, err := p.DefaultSize()
	if err != nil {
		kit.WriteError(w, r, http.StatusConflict, "product unavailable", map[string]any{"id": req.ID})
		return
	}

	item := LineItem{
		ItemID:   p.ID,
		UserID:   u.ID,
		Name:     p.Name,
		Image:    p.Image,
		Price:    size.Price,
		Stock:    size.Stock,
		Quantity: req.Quantity,
	}

	held := 0
	err = store.AddIf(item, func(current LineItem, _ bool) error {
		held = current.Quantity
		if held+req.Quantity > size.Stock {
			return errInsufficientStock
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errInsufficientStock):
		kit.WriteError(w, r, http.StatusConflict, "insufficient stock", map[string]any{
			"stock": size.Stock,
			"held":  held,
		})
		return
	case errors.Is(err, ErrNotLoaded):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "cart loading", nil)
		return
	default:
		s.logger().Error("add to cart failed", zap.Error(err), zap.Int64("product_id", req.ID))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, store.ItemsForUser(u.ID))
}

// updateQuantity clamps the requested quantity to [1, stock] of the stored
// entry before handing it to the store.
func (s *Server) updateQuantity(w http.ResponseWriter, r *http.Request) {
	store := FromContext(r.Context())

	id, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var req quantityReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	entry, found := findEntry(r.Context(), store, id)
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not in cart", map[string]any{"id": id})
		return
	}

	if entry.Stock < 1 {
		kit.WriteError(w, r, http.StatusConflict, "out of stock", map[string]any{"id": id})
		return
	}

	q := req.Quantity
	if q > entry.Stock {
		q = entry.Stock
	}
	if q < 1 {
		q = 1
	}

	store.UpdateQuantity(id, q)
	kit.WriteJSON(w, http.StatusOK, store.Items())
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	FromContext(r.Context()).Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error, id int64) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"id": id})
	case errors.Is(err, catalog.ErrUnavailable):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	default:
		s.logger().Warn("catalog error", zap.Error(err), zap.Int64("product_id", id))
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	}
}

// WaitLoaded holds requests until the store in their context finished its
// initial load, so reads and stock checks see the persisted cart. After d
// (defaultLoadWait when zero) the request is answered with 503. It must run
// after Provide.
func WaitLoaded(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		d = defaultLoadWait
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			if err := FromContext(r.Context()).WaitReady(ctx); err != nil {
				kit.WriteError(w, r, http.StatusServiceUnavailable, "cart loading", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// findEntry prefers the session user's own entry and falls back to any entry
// with the id, since the quantity update itself is not user scoped.
func findEntry(ctx context.Context, store *Store, id int64) (LineItem, bool) {
	var (
		fallback LineItem
		found    bool
	)
	u, hasUser := session.UserFromContext(ctx)

	for _, it := range store.Items() {
		if it.ItemID != id {
			continue
		}
		if hasUser && it.UserID == u.ID {
			return it, true
		}
		if !found {
			fallback, found = it, true
		}
	}
	return fallback, found
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}
