package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"guides-server/chat"
	"guides-server/core"
	"guides-server/editor"
	chatapi "guides-server/handlers/api/chat"
	"guides-server/handlers/api/guides"
	"guides-server/handlers/api/media"
	"guides-server/handlers/api/notifications"
	"guides-server/handlers/api/owner"
	"guides-server/handlers/api/sessions"
	"guides-server/handlers/auth"
	"guides-server/handlers/live"
	authMiddleware "guides-server/middleware"
	"guides-server/stores"
)

type server struct {
	store    stores.Store
	media    core.MediaStore
	registry *editor.Registry
	room     *chat.Room
	hub      *live.Hub
}

func allowedOrigin(r *http.Request, origin string) bool {
	if extra := os.Getenv("CORS_ORIGIN"); extra != "" && origin == extra {
		return true
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
}

func setupRouter(s *server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowedOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/socket.io/", s.hub.Server().ServeHandler(nil))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleProviderLogin)
		r.Get("/callback", auth.HandleProviderCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate(s.store))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", auth.HandleRegister(s.store, s.store))
			r.Post("/login", auth.HandleLogin(s.store))
			r.Get("/check", auth.HandleCheck(s.store))
			r.Post("/logout", auth.HandleLogout)
			r.Post("/reset-password", auth.HandleResetPassword(s.store))
			r.Post("/change-password", auth.HandleChangePassword(s.store))
		})

		r.Route("/public/guides", func(r chi.Router) {
			r.Get("/", guides.HandleListPublic(s.store))
			r.Get("/{slug}", guides.HandleGetPublic(s.store))
		})
		r.Get("/media/{id}", media.HandleGet(s.media))

		// Pending accounts can still read their notifications and the chat.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireUser)
			r.Get("/notifications", notifications.HandleList(s.store))
			r.Post("/notifications/{id}/read", notifications.HandleMarkRead(s.store))
			r.Get("/chat/messages", chatapi.HandleMessages(s.room))
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireApproved)

			r.Post("/chat/send", chatapi.HandleSend(s.room))
			r.Post("/media", media.HandleUpload(s.media))

			r.Route("/guides", func(r chi.Router) {
				r.Get("/", guides.HandleListGuides(s.store))
				r.Post("/", guides.HandleCreateGuide(s.store))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", guides.HandleGetGuide(s.store))
					r.Put("/", guides.HandleUpdateGuide(s.store))
					r.Delete("/", guides.HandleDeleteGuide(s.store, s.registry))
					r.Put("/elements", guides.HandleReplaceElements(s.store))
					r.Post("/editor", sessions.HandleOpen(s.store, s.registry))
				})
			})

			r.Route("/editor/{session}", func(r chi.Router) {
				r.Get("/", sessions.HandleState(s.registry))
				r.Delete("/", sessions.HandleClose(s.registry))
				r.Post("/elements", sessions.HandleAdd(s.registry))
				r.Patch("/elements/{element}", sessions.HandleSetProperty(s.registry))
				r.Delete("/elements/{element}", sessions.HandleDelete(s.registry))
				r.Post("/select", sessions.HandleSelect(s.registry))
				r.Post("/drag", sessions.HandleDrag(s.registry))
				r.Post("/resize", sessions.HandleResize(s.registry))
				r.Post("/save", sessions.HandleSave(s.store, s.registry))
			})
		})

		r.Route("/owner", func(r chi.Router) {
			r.Use(authMiddleware.RequireModerator)

			r.Get("/users", owner.HandleListUsers(s.store))
			r.Post("/users/{id}/approve", owner.HandleApproveUser(s.store, s.store, s.hub))
			r.Put("/users/{id}/role", owner.HandleSetRole(s.store))
			r.Post("/users/{id}/reset-token", owner.HandleResetToken(s.store))
			r.Delete("/users/{id}", owner.HandleDeleteUser(s.store))
			r.Get("/guides", owner.HandleListGuides(s.store))
			r.Delete("/guides/{id}", guides.HandleDeleteGuide(s.store, s.registry))
			r.Post("/broadcast", owner.HandleBroadcast(s.store, s.store, s.hub))
			r.Put("/chat", owner.HandleSetChat(s.room))
			r.Delete("/chat/messages", owner.HandleClearChat(s.room))
			r.Get("/stats", owner.HandleStats(s.store, s.store, s.registry, s.hub, s.room))
		})
	})

	return r
}

// durationEnv reads a Go duration such as "45m" from the environment.
func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": v}).Warn("Invalid duration, using default")
		return fallback
	}
	return d
}

func waitForShutdown(srv *http.Server, s *server, cancel context.CancelFunc) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for range signalC {
			close(exit)
			return
		}
	}()

	<-exit
	logrus.Info("Shutting down...")

	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown")
	}
	s.hub.Server().Close(nil)
	cancel()
	if err := s.store.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close store")
	}
}

func serveCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and socket.io server",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := stores.GetStore()
			auth.InitAuth(store)

			hub := live.NewHub()
			s := &server{
				store:    store,
				media:    stores.GetMediaStore(store),
				registry: editor.NewRegistry(durationEnv("EDITOR_SESSION_TTL", 30*time.Minute)),
				room:     chat.NewRoom(hub),
				hub:      hub,
			}

			ctx, cancel := context.WithCancel(context.Background())
			go s.room.Run(ctx, durationEnv("CHAT_CLEAR_INTERVAL", time.Hour))
			go s.registry.Run(ctx, time.Minute)

			srv := &http.Server{Addr: listenAddr, Handler: setupRouter(s)}
			logrus.WithField("addr", listenAddr).Info("starting server")
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logrus.WithField("event", "start server").Fatal(err)
				}
			}()

			logrus.Debug("Server is running in the background")
			waitForShutdown(srv, s, cancel)
			return nil
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", ":3002", "Set the server listen address")
	return cmd
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file loaded")
	}

	var logLevel string
	rootCmd := &cobra.Command{
		Use:   "guides-server",
		Short: "Backend for the visual guide editor",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			logrus.SetLevel(level)
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
