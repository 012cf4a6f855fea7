// Package transport pkg/transport/interfaces.go

//go:generate mockgen -destination=mock_transport.go -package=transport github.com/kmatveev/upsmon/pkg/transport Link

package transport

import "context"

// Link is a request/response byte channel to the UPS. It moves bytes only;
// protocol interpretation belongs to the codec.
type Link interface {
	// Exchange writes one request frame and reads exactly respLen response
	// bytes, bounded by the link's configured timeout and ctx.
	Exchange(ctx context.Context, frame []byte, respLen int) ([]byte, error)

	// Close releases the device.
	Close() error
}
