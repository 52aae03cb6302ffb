// Package server wires the configured services together.
package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/extension"
	"github.com/formmailer/formmailer/pkg/extension/luahost"
	"github.com/formmailer/formmailer/pkg/flow"
	"github.com/formmailer/formmailer/pkg/mail"
	"github.com/formmailer/formmailer/pkg/rest"
	"github.com/formmailer/formmailer/pkg/server/web"
	"github.com/formmailer/formmailer/pkg/session"
	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/formmailer/formmailer/pkg/stringutil"
	"github.com/formmailer/formmailer/pkg/template"
	"github.com/formmailer/formmailer/pkg/upload"
	"github.com/formmailer/formmailer/pkg/validate"
	"github.com/rs/zerolog/log"
)

const sessionSweepInterval = time.Minute

// Services holds the configured and started services.
type Services struct {
	Store            storage.Store
	ExtHost          *extension.Host
	LuaHost          *luahost.Host
	Processor        *flow.Processor
	Sessions         *session.Manager
	RetentionScanner *upload.RetentionScanner
	WebServer        *web.Server
}

// Prod wires up the production environment.
func Prod(rootCtx context.Context, shutdownChan chan bool, conf *config.Root) (*Services, error) {
	// Configure storage.
	store, err := storage.FromConfig(conf.Storage)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.FromConfig(conf.Mail)
	if err != nil {
		return nil, err
	}

	// Load Lua extensions; a missing script leaves the host empty.
	extHost := extension.NewHost()
	luaHost, err := luahost.New(conf.Lua, extHost)
	if err != nil {
		return nil, fmt.Errorf("lua initialization failed: %w", err)
	}

	// Uploads are written to incoming by the web handler and staged by the flow.
	incomingDir := filepath.Join(conf.Upload.TmpDir, "incoming")
	if err := os.MkdirAll(incomingDir, 0o750); err != nil {
		return nil, fmt.Errorf("upload dir %q: %w", incomingDir, err)
	}
	inspector := upload.Sniffer{}
	uploads, err := upload.NewManager(filepath.Join(conf.Upload.TmpDir, "staged"), inspector)
	if err != nil {
		return nil, err
	}

	// Start retention scanner.
	retentionScanner := upload.NewRetentionScanner(
		uploads.Dir, conf.Upload.RetentionPeriod, conf.Upload.RetentionSleep)
	retentionScanner.Start(shutdownChan)

	sessions := session.NewManager(
		conf.Web.CookieName, []byte(conf.Web.CookieAuthKey), conf.Web.SessionTTL)
	go sessions.Run(sessionSweepInterval, shutdownChan)

	layout, err := loadLayout(conf.Web.LayoutFile)
	if err != nil {
		return nil, err
	}

	prefix := stringutil.MakePathPrefixer(conf.Web.BasePath)
	proc := &flow.Processor{
		Templates: &template.FileStore{
			ChunkDir:    conf.Templates.ChunkDir,
			ResourceDir: conf.Templates.ResourceDir,
			BaseDirs:    conf.Templates.BaseDirs,
			Cache:       true,
		},
		Mailer:    mailer,
		Validator: validate.NewEngine(extHost),
		Ext:       extHost,
		Store:     store,
		Uploads:   uploads,
		Inspector: inspector,
		ResourceURL: func(id string) string {
			return prefix("/page/" + id)
		},
	}

	// Configure routes and start HTTP server.
	rest.SetupRoutes(web.Router.PathPrefix(prefix("/api/")).Subrouter())
	web.SetupRoutes(web.Router.PathPrefix(prefix("/")).Subrouter(), &web.FormHandler{
		Processor:      proc,
		Sessions:       sessions,
		Layout:         layout,
		MaxUploadBytes: conf.Web.MaxUploadBytes,
		TmpDir:         incomingDir,
	})
	webServer := web.NewServer(conf, shutdownChan, store)
	go webServer.Start(rootCtx)

	return &Services{
		Store:            store,
		ExtHost:          extHost,
		LuaHost:          luaHost,
		Processor:        proc,
		Sessions:         sessions,
		RetentionScanner: retentionScanner,
		WebServer:        webServer,
	}, nil
}

// loadLayout reads the page layout, which must carry the content placeholder.
func loadLayout(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("layout file: %w", err)
	}
	layout := string(b)
	if !strings.Contains(layout, web.ContentPlaceholder) {
		return "", fmt.Errorf("layout file %q lacks %s", path, web.ContentPlaceholder)
	}
	log.Info().Str("module", "server").Str("phase", "startup").Str("path", path).
		Msg("Loaded page layout")
	return layout, nil
}
