package alert

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/twinsense/twintuition/internal/models"
)

// MessageRenderer turns a sync event into user-facing alert text.
type MessageRenderer interface {
	Render(ctx context.Context, sync models.SyncEvent) (string, error)
}

// alertTemplates holds the candidate messages per sync type. One is selected
// at random per alert so repeated alerts don't read identically.
var alertTemplates = map[models.SyncType][]string{
	models.SyncTypeSimultaneousAction: {
		"Twin moment! You both just did the same thing",
		"Synchronized again: your twin mirrored your move",
		"That wasn't a coincidence: your twin did it too",
	},
	models.SyncTypeMoodSync: {
		"You and your twin are feeling it together right now",
		"Mood check: your twin is in the same place emotionally",
		"Twin feelings detected, you're on the same wavelength",
	},
	models.SyncTypeAppSync: {
		"Your twin opened the app at the same time as you",
		"You both reached for the app together",
		"Twintuition ping: simultaneous app opens",
	},
	models.SyncTypeLocationSync: {
		"You and your twin are practically in the same spot",
		"Close encounter: your twin is nearby right now",
	},
	models.SyncTypeTemporalPattern: {
		"You two keep showing up at the same hour, day after day",
		"There's a rhythm to this: same time, both twins, again",
	},
}

// fallbackTemplate covers sync types without a template entry.
const fallbackTemplate = "Twintuition moment detected"

// TemplateRenderer selects a canned message for the sync type and appends the
// rounded confidence percentage. The random source is injectable so tests can
// pin template selection; scoring stays deterministic either way.
type TemplateRenderer struct {
	intN func(int) int
}

// NewTemplateRenderer creates a renderer. A nil intN falls back to the shared
// math/rand/v2 source.
func NewTemplateRenderer(intN func(int) int) *TemplateRenderer {
	if intN == nil {
		intN = rand.IntN
	}
	return &TemplateRenderer{intN: intN}
}

// Render never fails; it is the terminal fallback in the render chain.
func (r *TemplateRenderer) Render(ctx context.Context, sync models.SyncEvent) (string, error) {
	candidates := alertTemplates[sync.Type]
	text := fallbackTemplate
	if len(candidates) > 0 {
		text = candidates[r.intN(len(candidates))]
	}
	return fmt.Sprintf("%s (%d%% sync)", text, int(math.Round(sync.Confidence*100))), nil
}
