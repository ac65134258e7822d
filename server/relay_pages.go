package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RelayMessage is the payload the callback page delivers to the opener or
// dialog parent.
type RelayMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	relayMessageTypeToken = "token"
	relayMessageTypeError = "error"
)

// popupRelayPage messages a bare string (the session token, or the error
// signal) back to the Office dialog parent. The dialog channel itself is the
// trust boundary here.
var popupRelayPage = template.Must(template.New("popup_relay").Parse(`<!DOCTYPE html>
<html>
  <body>
    <script src="https://appsforoffice.microsoft.com/lib/1/hosted/office.js"></script>
    <script>
      Office.onReady(function () {
        Office.context.ui.messageParent({{.Message}});
      });
    </script>
  </body>
</html>
`))

// relayMessagePage posts a structured RelayMessage to window.opener and
// attempts Office dialog messaging as a fallback channel.
var relayMessagePage = template.Must(template.New("relay_message").Parse(`<!DOCTYPE html>
<html>
  <head>
    <script src="https://appsforoffice.microsoft.com/lib/1/hosted/office.js"></script>
  </head>
  <body>
    <script>
      var relayMessage = {{.Message}};
      var payload = JSON.stringify(relayMessage);
      if (window.opener) {
        window.opener.postMessage(payload, {{.TargetOrigin}});
      }
      if (typeof Office !== "undefined") {
        Office.onReady(function () {
          if (Office.context && Office.context.ui) {
            Office.context.ui.messageParent(payload);
          }
        });
      }
    </script>
  </body>
</html>
`))

func renderPopupRelayPage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := popupRelayPage.Execute(w, map[string]any{"Message": message}); err != nil {
		log.Error().Err(err).Msg("Failed to render popup relay page")
	}
}

func renderRelayMessagePage(w http.ResponseWriter, statusCode int, message RelayMessage, targetOrigin string) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(statusCode)
	data := map[string]any{
		"Message":      message,
		"TargetOrigin": targetOrigin,
	}
	if err := relayMessagePage.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to render relay message page")
	}
}
