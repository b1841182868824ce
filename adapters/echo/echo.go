// Package hxselectecho provides Echo framework integration for hxselect.
//
// Mount the registry onto an Echo instance or group:
//
//	e := echo.New()
//	reg := hxselectecho.Mount(e)
//
//	e.GET("/pages/edit", func(c echo.Context) error {
//	    field := hxselect.NewField("Page", hxselect.WithSearchCallback(searchPages))
//	    return hxselectecho.Render(c, editForm(field.Placeholder(reg)))
//	})
//
// Mount also installs the registry middleware, so placeholders in HTML
// responses are replaced by live select widgets.
package hxselectecho

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/hxselect"
)

// Option configures the Mount and MountGroup functions.
type Option func(*options)

type options struct {
	key     []byte
	path    string
	regOpts []hxselect.Option
	noWatch bool
}

// WithKey sets the encryption key for the registry.
// The key should be at least 32 bytes of cryptographically random data.
// If not provided, a random key is generated (suitable for development only).
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithPath sets the URL path prefix for component and search routes.
// Defaults to "/_c/".
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithRegistryOptions passes options through to hxselect.NewRegistry.
func WithRegistryOptions(opts ...hxselect.Option) Option {
	return func(o *options) {
		o.regOpts = append(o.regOpts, opts...)
	}
}

// WithoutMiddleware skips installing the placeholder middleware.
func WithoutMiddleware() Option {
	return func(o *options) {
		o.noWatch = true
	}
}

// Mount creates a registry and mounts its routes and middleware on an Echo
// instance. The registry becomes the hxselect default.
//
//	e := echo.New()
//	reg := hxselectecho.Mount(e, hxselectecho.WithKey(key))
func Mount(e *echo.Echo, opts ...Option) *hxselect.Registry {
	reg, o := newRegistry(opts)
	e.Any(reg.BasePath()+"*", Handler(reg))
	if !o.noWatch {
		e.Use(Middleware(reg))
	}
	return reg
}

// MountGroup creates a registry and mounts it on an Echo group. Component
// requests then pass through the group's middleware (auth, logging, etc.).
//
//	g := e.Group("/app", authMiddleware)
//	reg := hxselectecho.MountGroup(g)
func MountGroup(g *echo.Group, opts ...Option) *hxselect.Registry {
	reg, o := newRegistry(opts)
	g.Any(reg.BasePath()+"*", Handler(reg))
	if !o.noWatch {
		g.Use(Middleware(reg))
	}
	return reg
}

func newRegistry(opts []Option) (*hxselect.Registry, *options) {
	o := &options{path: hxselect.DefaultBasePath}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("hxselectecho: failed to generate random key: %v", err))
		}
	}

	regOpts := append([]hxselect.Option{hxselect.WithBasePath(o.path)}, o.regOpts...)
	reg := hxselect.NewRegistry(key, regOpts...)
	hxselect.SetDefault(reg)
	return reg, o
}

// Handler serves the registry routes from an Echo wildcard route. Any group
// prefix in front of the base path is stripped before routing.
func Handler(reg *hxselect.Registry) echo.HandlerFunc {
	h := reg.Handler()
	return func(c echo.Context) error {
		if prefix := strings.TrimSuffix(c.Path(), reg.BasePath()+"*"); prefix != "" {
			http.StripPrefix(prefix, h).ServeHTTP(c.Response(), c.Request())
			return nil
		}
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

// Middleware applies the registry mounts to HTML responses. Errors returned
// by the route are handed to Echo's error handler before mounting, so error
// pages are mounted too.
func Middleware(reg *hxselect.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasSuffix(c.Path(), reg.BasePath()+"*") {
				return next(c)
			}
			res := c.Response()
			reg.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				c.SetResponse(echo.NewResponse(w, c.Echo()))
				if err := next(c); err != nil {
					c.Error(err)
				}
			})).ServeHTTP(res, c.Request())
			c.SetResponse(res)
			return nil
		}
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxselectecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
