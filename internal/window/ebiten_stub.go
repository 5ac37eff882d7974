//go:build !cgo

package window

import "context"

// Run reports ErrUnsupported; the window backend needs cgo.
func Run(ctx context.Context, cfg Config, lens *Lens, r Refresher) error {
	return ErrUnsupported
}
