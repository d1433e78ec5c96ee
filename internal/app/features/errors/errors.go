// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/vettahub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// pageData is the view model for error pages.
type pageData struct {
	viewdata.BaseVM
	Message string
}

// Handler is the errors feature handler.
// No DB needed; it just renders templates.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound renders a friendly "page not found" page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	templates.Render(w, r, "error_page", pageData{
		BaseVM:  viewdata.NewBaseVM(r, "Page not found", "/"),
		Message: "The page you are looking for does not exist.",
	})
}

// ErrorLogger logs handler failures and renders a friendly error page.
// Handlers pass an internal message for the log and a safe message for
// the user; the internal detail never reaches the response.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

// LogBadRequest logs a client error and renders a 400 page.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, internal string, err error, userMsg, backURL string) {
	e.Log.Warn(internal,
		zap.Error(err),
		zap.String("path", r.URL.Path))
	e.render(w, r, http.StatusBadRequest, userMsg, backURL)
}

// LogServerError logs a server-side failure and renders a 500 page.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, internal string, err error, userMsg, backURL string) {
	e.Log.Error(internal,
		zap.Error(err),
		zap.String("path", r.URL.Path))
	e.render(w, r, http.StatusInternalServerError, userMsg, backURL)
}

func (e *ErrorLogger) render(w http.ResponseWriter, r *http.Request, status int, msg, backURL string) {
	w.WriteHeader(status)
	vm := viewdata.NewBaseVM(r, "Something went wrong", backURL)
	if backURL != "" {
		vm.BackURL = backURL
	}
	templates.Render(w, r, "error_page", pageData{
		BaseVM:  vm,
		Message: msg,
	})
}
