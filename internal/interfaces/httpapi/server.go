package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"btcfee/internal/application/service"
	"btcfee/internal/application/usecase/ticker"
	"btcfee/internal/domain/fee"
	"btcfee/internal/infrastructure/metrics"
)

// PriceSource 当前价格快照
type PriceSource interface {
	Snapshot() ticker.Snapshot
}

type Server struct {
	product string
	prices  PriceSource
	fees    *service.FeeService
	router  chi.Router
}

func New(product string, prices PriceSource, fees *service.FeeService) *Server {
	s := &Server{product: product, prices: prices, fees: fees}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(accessLog)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/price", s.price)
		r.Get("/calc", s.calc)
		r.Get("/modes", s.modes)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run 阻塞直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type priceResponse struct {
	Product    string   `json:"product"`
	HasPrice   bool     `json:"has_price"`
	LTP        *float64 `json:"ltp,omitempty"`
	Display    string   `json:"display,omitempty"`
	Source     string   `json:"source,omitempty"`
	ObservedAt string   `json:"observed_at,omitempty"`
	State      string   `json:"state"`
	LastError  string   `json:"last_error,omitempty"`
}

func (s *Server) price(w http.ResponseWriter, r *http.Request) {
	snap := s.prices.Snapshot()
	resp := priceResponse{
		Product:   s.product,
		HasPrice:  snap.HasPrice,
		State:     snap.State.String(),
		LastError: snap.LastError,
	}
	if snap.HasPrice {
		ltp := snap.Sample.LTP
		resp.LTP = &ltp
		resp.Display = fee.Yen(ltp).Display()
		resp.Source = snap.Sample.Source.String()
		resp.ObservedAt = snap.Sample.ObservedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

type calcResponse struct {
	Mode               string       `json:"mode"`
	OrderAmount        string       `json:"order_amount"`
	OrderAmountSubtext string       `json:"order_amount_subtext,omitempty"`
	FeeAmount          string       `json:"fee_amount"`
	FeeRate            string       `json:"fee_rate"`
	NetAmount          string       `json:"net_amount"`
	NetBTCAmount       string       `json:"net_btc_amount,omitempty"`
	Copyable           copyableJSON `json:"copyable"`
}

type copyableJSON struct {
	OrderAmount  string `json:"order_amount"`
	FeeAmount    string `json:"fee_amount"`
	NetAmount    string `json:"net_amount"`
	NetBTCAmount string `json:"net_btc_amount,omitempty"`
}

func (s *Server) calc(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode, err := fee.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.fees.Calculate(r.Context(), mode, fee.Input{
		Amount:         q.Get("amount"),
		ReferencePrice: q.Get("price"),
		FeeRatePercent: q.Get("fee"),
	})
	switch {
	case err == nil:
	case fee.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, service.ErrLivePriceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, calcResponse{
		Mode:               res.Mode.String(),
		OrderAmount:        res.OrderAmount,
		OrderAmountSubtext: res.OrderAmountSubtext,
		FeeAmount:          res.FeeAmount,
		FeeRate:            res.FeeRate,
		NetAmount:          res.NetAmount,
		NetBTCAmount:       res.NetBTCAmount,
		Copyable: copyableJSON{
			OrderAmount:  res.Copyable.OrderAmount,
			FeeAmount:    res.Copyable.FeeAmount,
			NetAmount:    res.Copyable.NetAmount,
			NetBTCAmount: res.Copyable.NetBTCAmount,
		},
	})
}

func (s *Server) modes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"modes":            fee.ModeNames(),
		"default_fee_rate": s.fees.DefaultRate(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
