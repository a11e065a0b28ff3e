package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
	"meme-studio/export"
	"meme-studio/fetch"
	"meme-studio/gallery"
	"meme-studio/handlers/api/images"
	"meme-studio/handlers/api/memes"
	"meme-studio/handlers/api/proxy"
	"meme-studio/handlers/api/sessions"
	"meme-studio/handlers/auth"
	"meme-studio/handlers/websocket"
	"meme-studio/imagestores"
	authMiddleware "meme-studio/middleware"
	"meme-studio/render"
	"meme-studio/stores"
)

type app struct {
	memes    core.MemeStore
	images   core.ImageStore
	registry *sessions.Registry
	renderer *render.Renderer
	pipeline *export.Pipeline
	gallery  *gallery.Service
	fetcher  *fetch.Client
}

func newApp(memeStore core.MemeStore, imageStore core.ImageStore, renderer *render.Renderer, baseURL string, idle time.Duration) *app {
	return &app{
		memes:    memeStore,
		images:   imageStore,
		registry: sessions.NewRegistry(idle),
		renderer: renderer,
		pipeline: export.NewPipeline(renderer, imageStore, memeStore, baseURL),
		gallery:  gallery.NewService(memeStore, imageStore),
		fetcher:  fetch.NewClient(),
	}
}

func setupRouter(a *app) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/api/proxy", proxy.HandleImageProxy(a.fetcher))

	r.Route("/api/imgur", func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)
		r.Post("/upload", images.HandleLegacyUpload(a.images))
		r.Delete("/delete", images.HandleLegacyDelete(a.images))
	})

	r.Route("/api/v2", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Post("/images", images.HandleUpload(a.images))
			r.Delete("/images", images.HandleDelete(a.images))
			r.Delete("/memes/{id}", memes.HandleDeleteMeme(a.gallery))
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.OptionalAuthJWT)
			r.Get("/memes", memes.HandleListMemes(a.gallery))
			r.Get("/memes/{id}", memes.HandleGetMeme(a.gallery, a.pipeline))
			r.Post("/memes/{id}/like", memes.HandleLikeMeme(a.gallery))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessions.HandleCreate(a.registry, a.fetcher, a.memes))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessions.HandleGet(a.registry))
				r.Delete("/", sessions.HandleDelete(a.registry))
				r.Post("/image", sessions.HandleLoadImage(a.registry, a.fetcher))
				r.Post("/commands", sessions.HandleCommand(a.registry))
				r.Get("/handles", sessions.HandleHandles(a.registry, a.renderer))
				r.Get("/export.png", sessions.HandleExport(a.registry, a.pipeline))
				r.Get("/thumbnail.png", sessions.HandleThumbnail(a.registry, a.renderer))
				r.With(authMiddleware.AuthJWT).Post("/save", sessions.HandleSave(a.registry, a.pipeline))
			})
		})
	})

	// Share links resolve to the viewer payload.
	r.Get("/meme/{id}", memes.HandleGetMeme(a.gallery, a.pipeline))

	if media, ok := a.images.(http.Handler); ok {
		r.Handle("/media/*", media)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	return r
}

func waitForShutdown(server *http.Server, ioo *websocket.Server, closers ...io.Closer) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ioo.Close(nil)
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithField("error", err).Warn("HTTP server did not shut down cleanly")
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logrus.WithField("error", err).Warn("Failed to close store")
		}
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	baseURL := flag.String("base-url", "http://localhost:3002", "Public URL used in share links and media URLs.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		*baseURL = v
	}

	fonts := render.NewFontBook()
	if dir := os.Getenv("FONTS_PATH"); dir != "" {
		n, err := fonts.LoadDir(dir)
		if err != nil {
			logrus.WithFields(logrus.Fields{"path": dir, "error": err}).Warn("Failed to load fonts")
		} else {
			logrus.WithFields(logrus.Fields{"path": dir, "count": n}).Info("Loaded fonts")
		}
	}

	auth.InitAuth()
	memeStore := stores.GetStore(context.Background())
	imageStore := imagestores.GetImageStore(*baseURL)
	idle := sessions.DefaultIdleTimeout
	if v := os.Getenv("SESSION_IDLE_TIMEOUT"); v != "" {
		if idle, err = time.ParseDuration(v); err != nil {
			logrus.Fatalf("Invalid SESSION_IDLE_TIMEOUT: %v", err)
		}
	}
	a := newApp(memeStore, imageStore, render.NewRenderer(render.DefaultPixelRatio, fonts), *baseURL, idle)

	r := setupRouter(a)
	ioo := websocket.SetupSocketIO(a.registry)
	a.registry.OnRemove(ioo.CloseSession)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go a.registry.Run(sweepCtx, time.Minute)

	server := &http.Server{Addr: *listenAddress, Handler: r}
	logrus.WithFields(logrus.Fields{"addr": *listenAddress, "base_url": *baseURL}).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	var closers []io.Closer
	if c, ok := memeStore.(io.Closer); ok {
		closers = append(closers, c)
	}
	waitForShutdown(server, ioo, closers...)
}
