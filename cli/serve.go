package cli

import (
	"blueprints-server/handlers/api/blueprints"
	"blueprints-server/handlers/websocket"
	"blueprints-server/metrics"
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

type (
	// roomHub is the part of the socket.io hub the router needs.
	roomHub interface {
		blueprints.Notifier
		ActiveRooms() map[string]int
	}

	roomInfo struct {
		ID       string `json:"id"`
		Watchers int    `json:"watchers"`
	}
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and socket.io server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "Set the server listen address (default from LISTEN)")

	return cmd
}

func runServer(ctx context.Context, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	listenAddr := opts.Listen
	if listenAddr == "" && opts.Config != nil {
		listenAddr = opts.Config.Listen
	}

	svc, cleanup, err := openService(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := websocket.NewHub()
	r := setupRouter(svc, hub, reg)
	r.Handle("/socket.io/", hub.Server().ServeHandler(nil))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", listenAddr).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").WithError(err).Error("Server stopped")
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupRouter(svc blueprints.Service, hub roomHub, reg *prometheus.Registry) *chi.Mux {
	m := metrics.NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	corsOptions := cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "" {
				return false
			}

			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}

			switch parsed.Scheme {
			case "http", "https":
				switch parsed.Hostname() {
				case "localhost", "127.0.0.1", "::1":
					return true
				}
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	r.Use(cors.Handler(corsOptions))

	r.Route("/api/v1/blueprints", func(r chi.Router) {
		r.Get("/", blueprints.HandleList(svc))
		r.Post("/", blueprints.HandleCreate(svc))
		r.Route("/{author}", func(r chi.Router) {
			r.Get("/", blueprints.HandleListByAuthor(svc))
			r.Get("/{bpname}", blueprints.HandleGet(svc))
			r.Put("/{bpname}/points", blueprints.HandleAddPoint(svc, hub))
		})
	})

	r.Get("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, roomList(hub.ActiveRooms()))
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}

// roomList orders rooms by watchers, busiest first, then by id.
func roomList(active map[string]int) []roomInfo {
	rooms := make([]roomInfo, 0, len(active))
	for id, n := range active {
		rooms = append(rooms, roomInfo{ID: id, Watchers: n})
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Watchers == rooms[j].Watchers {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Watchers > rooms[j].Watchers
	})
	return rooms
}
