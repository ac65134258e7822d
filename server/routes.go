package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex        = "/{$}"
	RouteAuthStart    = "/auth/start"
	RouteAuthCallback = "/auth/callback"
	RouteCreateOrLink = "/create-or-link"

	// Add-in side assets (dialog bootstrap page and taskpane bridge)
	RouteDialogPage = "/dialog.html"
	RouteTaskpaneJS = "/taskpane.js"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteIndex, s.IndexHandler())

	// Login relay
	s.RegisterRouteFunc("GET "+RouteAuthStart, ChainMiddleware(s.AuthStartHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthCallback, ChainMiddleware(s.AuthCallbackHandler(), s.HTMLMiddleware()...))

	// Protected API
	s.RegisterRouteFunc("POST "+RouteCreateOrLink, ChainMiddleware(s.CreateOrLinkHandler(), append(s.APIMiddleware(), s.RequireAuth())...))

	// Static add-in assets
	s.RegisterRouteHandler("GET "+RouteDialogPage, s.fileServer)
	s.RegisterRouteHandler("GET "+RouteTaskpaneJS, s.fileServer)
}
