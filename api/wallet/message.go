package wallet

import (
	"encoding/base64"
	"fmt"
	"time"
)

const AppName = "Gimme Idea"

// NormalizeMessage picks the message that was signed. The header value wins
// when present. Clients send it base64 encoded so that newlines survive
// HTTP headers; when it does not decode as standard base64 the raw header
// value is used as-is. Existing clients rely on that fallback.
func NormalizeMessage(bodyMessage, headerMessage string) string {
	if headerMessage == "" {
		return bodyMessage
	}
	decoded, err := base64.StdEncoding.DecodeString(headerMessage)
	if err != nil {
		return headerMessage
	}
	return string(decoded)
}

// BuildMessage returns the canonical challenge a wallet is asked to sign.
func BuildMessage(action, app string, ts time.Time, address string) string {
	if app == "" {
		app = AppName
	}
	return fmt.Sprintf("%s to %s\n\nTimestamp: %s\nWallet: %s",
		action, app, ts.UTC().Format(time.RFC3339), address)
}
