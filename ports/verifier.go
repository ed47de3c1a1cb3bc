package ports

import "context"

// SignatureVerifier checks that signature over message was produced by the
// wallet at address. Implementations must fail closed: a malformed
// signature, an unsupported wallet type or an unreachable RPC node is a
// verification failure, never a success.
type SignatureVerifier interface {
	Verify(ctx context.Context, address, message, signature string) error
}
