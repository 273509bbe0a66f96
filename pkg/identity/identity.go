package identity

import (
	"fmt"

	"github.com/denisbrodbeck/machineid"
)

// ClientID derives a stable broker client identifier for this host.
// The id is hashed with the application name so it cannot be correlated
// with ids exposed by other software on the same machine.
func ClientID() (string, error) {
	id, err := machineid.ProtectedID("swing-engine")
	if err != nil {
		return "", fmt.Errorf("derive client id: %w", err)
	}
	return "swing-" + id[:12], nil
}
