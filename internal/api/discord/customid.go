package discord

import (
	"strconv"
	"strings"
	"time"

	platformdiscord "github.com/spec-kit/ticket-bot/internal/platform/discord"
)

// Component and modal custom ids. Panel and close flows keep all of their
// state in these ids.
const (
	idPanelType    = "panel:type"
	idPanelSubtype = "panel:subtype"
	idPanelPay     = "panel:pay"
	idPanelAmount  = "panel:amount"
	idPanelOther   = "panel:other"

	idCloseTicket  = platformdiscord.CustomIDCloseTicket
	idKeepOpen     = platformdiscord.CustomIDKeepOpen
	idConfirmClose = "ticket:confirm_close"
	idCancelClose  = "ticket:cancel_close"

	idEditPayment = "modal:payment"
	idStick       = "modal:stick"

	inputAmount       = "amount"
	inputDetails      = "details"
	inputInstructions = "instructions"
	inputSticky       = "message"

	idSeparator = ":"
	maxCustomID = 100
)

// joinID appends args to a custom id prefix.
func joinID(prefix string, args ...string) string {
	return strings.Join(append([]string{prefix}, args...), idSeparator)
}

// splitID matches id against prefix and returns n trailing arguments. The
// last argument keeps any separators it contains.
func splitID(id, prefix string, n int) ([]string, bool) {
	if !strings.HasPrefix(id, prefix+idSeparator) {
		return nil, false
	}
	rest := strings.TrimPrefix(id, prefix+idSeparator)
	args := strings.SplitN(rest, idSeparator, n)
	if len(args) != n {
		return nil, false
	}
	for _, a := range args {
		if a == "" {
			return nil, false
		}
	}
	return args, true
}

// fitsCustomID reports whether id respects Discord's length limit.
func fitsCustomID(id string) bool {
	return len(id) <= maxCustomID
}

func confirmCloseID(issued time.Time) string {
	return joinID(idConfirmClose, strconv.FormatInt(issued.Unix(), 10))
}

// confirmCloseIssued decodes the issue time of a confirm-close button.
func confirmCloseIssued(id string) (time.Time, bool) {
	args, ok := splitID(id, idConfirmClose, 1)
	if !ok {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

// confirmExpired reports whether a confirmation issued at issued has run
// past timeout.
func confirmExpired(issued, now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(issued) > timeout
}
