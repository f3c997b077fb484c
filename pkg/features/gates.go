package features

import "github.com/minio/sha256-simd"

type FeatureGate struct {
	Name    string
	Address [32]byte
}

// IndependentTransferCooldown gives transfer_one_token its own cooldown
// timestamp instead of sharing the counter record's add_one clock.
var IndependentTransferCooldown = FeatureGate{Name: "IndependentTransferCooldown", Address: gateAddress("independent_transfer_cooldown")}

var AllFeatureGates = []FeatureGate{IndependentTransferCooldown}

func gateAddress(name string) [32]byte {
	return sha256.Sum256([]byte("feature:" + name))
}
