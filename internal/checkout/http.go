package checkout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"CandleShop/internal/cart"
	"CandleShop/internal/catalog"
	"CandleShop/internal/session"
	"CandleShop/pkg/kit"
)

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// Server runs the checkout flow against the cart in the request context.
type Server struct {
	Store   Store
	Catalog Catalog
	Pricing Pricing
	Log     *zap.Logger

	// ConfirmLimiter throttles confirmations per client IP when set.
	ConfirmLimiter *kit.IPRateLimiter
}

type selectionReq struct {
	ItemIDs []int64 `json:"item_ids"`
}

const maxLookups = 4

var (
	errNoSelection       = errors.New("item_ids required")
	errNothingSelected   = errors.New("no selected item in cart")
	errInsufficientStock = errors.New("insufficient stock")
	errUnknownProduct    = errors.New("unknown product")
	errCatalogDown       = errors.New("catalog unavailable")
	errCatalogUpstream   = errors.New("catalog error")
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(session.Required)
	r.Use(cart.WaitLoaded(0))

	r.Post("/preview", s.preview)
	if s.ConfirmLimiter != nil {
		r.With(s.ConfirmLimiter.Middleware).Post("/confirm", s.confirm)
	} else {
		r.Post("/confirm", s.confirm)
	}
	r.Get("/orders/{id}", s.get)

	return r
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	selected, err := s.selection(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.Pricing.Quote(selected))
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	u, _ := session.UserFromContext(r.Context())

	selected, err := s.selection(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.checkStock(r.Context(), selected); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Lines leave the cart before the order is stored; a second confirm of
	// the same lines gets ErrSelectionChanged.
	store := cart.FromContext(r.Context())
	taken, err := store.TakeSelected(selected)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := s.Pricing.Quote(selected)
	o := Order{
		ID:           "o_" + uuid.NewString(),
		UserID:       u.ID,
		Lines:        q.Lines,
		ProductTotal: q.ProductTotal,
		ShippingFee:  q.ShippingFee,
		Discount:     q.Discount,
		Total:        q.Total,
		Status:       StatusPaid,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.Store.Create(r.Context(), o); err != nil {
		s.logger().Error("store order failed", zap.Error(err), zap.String("order_id", o.ID))
		for _, it := range taken {
			store.Add(it)
		}
		if isTimeoutErr(err) {
			kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
			return
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, o)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	u, _ := session.UserFromContext(r.Context())

	id := chi.URLParam(r, "id")
	o, found, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.logger().Error("store get order failed", zap.Error(err), zap.String("order_id", id))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	if o.UserID != u.ID {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, o)
}

// selection returns the session user's cart entries named in the request,
// in cart order.
func (s *Server) selection(w http.ResponseWriter, r *http.Request) ([]cart.LineItem, error) {
	u, _ := session.UserFromContext(r.Context())

	var req selectionReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	if len(req.ItemIDs) == 0 {
		return nil, errNoSelection
	}

	want := make(map[int64]struct{}, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		want[id] = struct{}{}
	}

	var selected []cart.LineItem
	for _, it := range cart.FromContext(r.Context()).ItemsForUser(u.ID) {
		if _, ok := want[it.ItemID]; ok {
			selected = append(selected, it)
		}
	}
	if len(selected) == 0 {
		return nil, errNothingSelected
	}
	return selected, nil
}

// checkStock re-reads every selected product from the catalog and rejects
// the checkout when a line asks for more than is in stock.
func (s *Server) checkStock(ctx context.Context, items []cart.LineItem) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookups)

	for _, it := range items {
		g.Go(func() error {
			p, err := s.Catalog.GetProduct(gctx, it.ItemID)
			switch {
			case err == nil:
			case errors.Is(err, catalog.ErrNotFound):
				return errUnknownProduct
			case errors.Is(err, catalog.ErrUnavailable):
				return errCatalogDown
			default:
				s.logger().Warn("catalog error", zap.Error(err), zap.Int64("product_id", it.ItemID))
				return errCatalogUpstream
			}

			size, err := p.DefaultSize()
			if err != nil || it.Quantity > size.Stock {
				return errInsufficientStock
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errNoSelection):
		kit.WriteError(w, r, http.StatusBadRequest, "item_ids required", nil)
	case errors.Is(err, errNothingSelected):
		kit.WriteError(w, r, http.StatusBadRequest, "no selected item in cart", nil)
	case errors.Is(err, errUnknownProduct):
		kit.WriteError(w, r, http.StatusBadRequest, "unknown product", nil)
	case errors.Is(err, errInsufficientStock):
		kit.WriteError(w, r, http.StatusConflict, "insufficient stock", nil)
	case errors.Is(err, errCatalogDown):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	case errors.Is(err, errCatalogUpstream):
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	case errors.Is(err, cart.ErrSelectionChanged):
		kit.WriteError(w, r, http.StatusConflict, "cart changed, review selection", nil)
	case errors.Is(err, cart.ErrNotLoaded):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "cart loading", nil)
	default:
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
