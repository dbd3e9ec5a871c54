package sync

import (
	"strings"
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// reconcileWindow bounds how far apart a pending message and its server
// echo may be timestamped and still count as the same message. The server
// stamps messages on arrival, so a couple of minutes absorbs clock skew
// and slow requests without matching unrelated messages.
const reconcileWindow = 2 * time.Minute

// reconcile merges locally pending messages into a freshly fetched thread.
// A pending message whose server echo is already present in the fetch is
// dropped; the canonical copy wins. Unmatched pending messages survive the
// replace so an in-flight send is never erased by a concurrent refresh.
// Returns the surviving locals.
func reconcile(fetched []model.Message, locals []model.Message) []model.Message {
	if len(locals) == 0 {
		return nil
	}

	claimed := make(map[string]bool, len(fetched))
	var survivors []model.Message

	for _, local := range locals {
		if idx := findEcho(fetched, &local, claimed); idx >= 0 {
			claimed[fetched[idx].ID] = true
			continue
		}
		survivors = append(survivors, local)
	}
	return survivors
}

// findEcho locates the server copy of a pending message: same trimmed
// content, sent by us, timestamped within the reconcile window. Each
// server message matches at most one local so duplicate sends of the
// same text each keep their own slot.
func findEcho(fetched []model.Message, local *model.Message, claimed map[string]bool) int {
	want := strings.TrimSpace(local.Content)
	for i := range fetched {
		m := &fetched[i]
		if claimed[m.ID] || !m.IsOwn {
			continue
		}
		if strings.TrimSpace(m.Content) != want {
			continue
		}
		d := m.CreatedAt.Sub(local.CreatedAt)
		if d < 0 {
			d = -d
		}
		if d <= reconcileWindow {
			return i
		}
	}
	return -1
}
