// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"net/http"

	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", "/default-back"),
//	    // page-specific fields...
//	}
type BaseVM struct {
	// Site identity (from config)
	SiteName string

	// User context (from auth middleware)
	IsLoggedIn bool
	IsActive   bool
	IsAdmin    bool
	UserName   string
	UserEmail  string
	PhotoURL   string

	// Page context
	Title       string
	BackURL     string
	CurrentPath string

	// CSRF protection
	CSRFToken string
}

// siteName is set once by Init from the loaded config.
var siteName = "VettaHub"

// Init sets the site name used by every BaseVM. Call once at startup
// from bootstrap.
func Init(name string) {
	if name != "" {
		siteName = name
	}
}

// SiteName returns the configured site name.
func SiteName() string {
	return siteName
}

// NewBaseVM creates a fully populated BaseVM for a page.
//
// Parameters:
//   - r: the HTTP request
//   - title: the page title
//   - backDefault: default URL for the back button if none in request
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := BaseVM{
		SiteName:    siteName,
		Title:       title,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}

	if snap, ok := auth.CurrentSession(r); ok && snap.Session != nil {
		s := snap.Session
		vm.IsLoggedIn = true
		vm.IsActive = s.IsActive
		vm.IsAdmin = s.IsAdmin
		vm.UserName = s.Name
		vm.UserEmail = s.Email
		vm.PhotoURL = s.PhotoURL
	}
	return vm
}
