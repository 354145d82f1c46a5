package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback payloads owned by the router: the action buttons attached to
// mechanic-facing service cards.
const (
	svcConfirmPrefix  = "svc_confirm:"
	svcRejectPrefix   = "svc_reject:"
	svcCompletePrefix = "svc_complete:"
)

func svcPayload(prefix string, serviceID int64) string {
	return fmt.Sprintf("%s%d", prefix, serviceID)
}

// trailingID parses the numeric id after a payload prefix.
func trailingID(data, prefix string) (int64, error) {
	raw := strings.TrimPrefix(data, prefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed callback payload %q: %w", data, err)
	}
	return id, nil
}
