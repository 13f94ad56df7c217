package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/url-shortener/pkg/middleware"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var serverErrorResponse = errorResponse{
	Status:  "error",
	Message: "server error occurred",
}

// New recovers from panics in downstream handlers, logs them and answers
// with a generic 500 JSON body. http.ErrAbortHandler is re-panicked so the
// server can abort the response.
func New(logger *slog.Logger) middleware.Middleware {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.ErrorContext(
					r.Context(),
					"something went wrong, panic occurred",
					slog.Group(op,
						slog.Any("err", rvr),
						slog.String("stack", string(debug.Stack())),
					),
				)

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, serverErrorResponse)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
