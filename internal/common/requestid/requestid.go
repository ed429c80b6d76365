package requestid

import (
	"context"
	"net/http"

	"github.com/renstrom/shortuuid"
)

// Request IDs are embedded in HTTP headers using this key.
// This is the standard key used for request Ids. For example, opentelemetry uses the same one.
const HeaderKey = "X-Request-Id"

// Longer ids supplied by clients are replaced
const maxIdLength = 128

type contextKey struct{}

// FromContext returns the request Id stored in a context, if one is available.  The second return value is true if
// the operation was successful.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// FromContextOrMissing returns the request Id stored in a context, if one is available. If none is available, the
// string "missing" is returned.
func FromContextOrMissing(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id
	}
	return "missing"
}

// AddToContext returns a new context derived from ctx that is annotated with an Id.  If ctx already has an Id, it is
// overwritten.
func AddToContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware annotates every request with an Id and echoes it in the X-Request-Id response header.  Ids supplied by
// the client are kept unless replace is true; otherwise ids are generated using github.com/renstrom/shortuuid.
func Middleware(replace bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderKey)
		if replace || id == "" || len(id) > maxIdLength {
			id = shortuuid.New()
		}
		w.Header().Set(HeaderKey, id)
		next.ServeHTTP(w, r.WithContext(AddToContext(r.Context(), id)))
	})
}
