package middleware

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSOptions controls which browsers may call the API
type CORSOptions struct {
	AllowedOrigins []string
	// AllowedMethods usually comes from RouteMethods on the API router
	AllowedMethods []string
	Development    bool
}

// RouteMethods lists every HTTP method registered on routes, plus OPTIONS
// for preflight requests.
func RouteMethods(routes chi.Routes) ([]string, error) {
	seen := map[string]bool{http.MethodOptions: true}
	err := chi.Walk(routes, func(method, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		seen[method] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	methods := make([]string, 0, len(seen))
	for method := range seen {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods, nil
}

// CORSMiddleware configures CORS settings. Development reflects any origin so
// credentialed requests from local frontends still work.
func CORSMiddleware(opts CORSOptions) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   opts.AllowedMethods,
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}
	if opts.Development {
		options.AllowedOrigins = nil
		options.AllowOriginFunc = func(r *http.Request, origin string) bool { return true }
	}

	return cors.Handler(options)
}

// DefaultMiddlewareStack returns a stack of commonly used middleware
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Compress(5),
	}
}
