package cachectrl

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// OptIn marks a response as cacheable for the default offset of one hour.
// Analytics responses are recomputed server-side on a similar cadence, so
// clients and intermediaries may safely reuse them within the window.
func OptIn(ctx *fiber.Ctx, t time.Time) {
	offset := time.Hour
	OptInCustom(ctx, t, offset)
}

func OptInCustom(ctx *fiber.Ctx, t time.Time, offset time.Duration) {
	ctx.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(offset.Seconds())))
	ctx.Set("Expires", t.Add(offset).Format(time.RFC1123))

	ctx.Response().Header.SetLastModified(t)
}

// OptOut forbids caching entirely. Used for admin and mutation endpoints.
func OptOut(ctx *fiber.Ctx) {
	ctx.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.Set("Pragma", "no-cache")
	ctx.Set("Expires", "0")
}
