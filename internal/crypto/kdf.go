package crypto

import "github.com/aoculi/sanctuary/internal/model"

// Client-side KDF costs committed at registration. These are a wire
// commitment: once stored on the user row they must never change, or the
// client's derived key breaks.
const (
	kdfAlgorithm   = "argon2id"
	kdfSaltLen     = 32
	hkdfSaltLen    = 16
	kdfMemoryCost  = 19456 // KiB
	kdfTimeCost    = 2
	kdfParallelism = 1
)

// GenerateKDFParams produces fresh key-derivation parameters for a new user.
func GenerateKDFParams() (model.KDFParams, error) {
	salt, err := RandBytes(kdfSaltLen)
	if err != nil {
		return model.KDFParams{}, err
	}
	hkdfSalt, err := RandBytes(hkdfSaltLen)
	if err != nil {
		return model.KDFParams{}, err
	}
	return model.KDFParams{
		Algorithm:   kdfAlgorithm,
		Salt:        salt,
		MemoryCost:  kdfMemoryCost,
		TimeCost:    kdfTimeCost,
		Parallelism: kdfParallelism,
		HKDFSalt:    hkdfSalt,
	}, nil
}
