// Package web serves the marketplace pages: listings, accounts, the inbox
// and conversation threads.
package web

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/puddle/internal/conversation"
	"github.com/zulandar/puddle/internal/identity"
	"github.com/zulandar/puddle/internal/logging"
	"gorm.io/gorm"
)

// DefaultCookieName applies when Options.CookieName is empty.
const DefaultCookieName = "puddle_session"

// Options holds the collaborators the handlers need.
type Options struct {
	DB            *gorm.DB
	Sessions      *identity.SessionManager
	Conversations *conversation.Store
	SiteName      string
	CookieName    string
	Logger        *zerolog.Logger
}

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Options
	Port int
	Out  io.Writer
}

type server struct {
	db         *gorm.DB
	sessions   *identity.SessionManager
	convs      *conversation.Store
	site       string
	cookieName string
	log        zerolog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("web: db is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("web: session manager is required")
	}
	if opts.Conversations == nil {
		return nil, fmt.Errorf("web: conversation store is required")
	}
	s := &server{
		db:         opts.DB,
		sessions:   opts.Sessions,
		convs:      opts.Conversations,
		site:       opts.SiteName,
		cookieName: opts.CookieName,
		log:        logging.OrNop(opts.Logger).With().Str("component", "web").Logger(),
	}
	if s.site == "" {
		s.site = "Puddle"
	}
	if s.cookieName == "" {
		s.cookieName = DefaultCookieName
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	staticFS, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return nil, fmt.Errorf("web: assets: %w", err)
	}
	router.StaticFS("/static", http.FS(staticFS))

	s.registerRoutes(router)
	return router, nil
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts.Options)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Puddle running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

var templateFuncs = template.FuncMap{
	"price": func(p float64) string { return fmt.Sprintf("$%.2f", p) },
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
