package vdscrypto

import (
	"crypto"
	"crypto/rsa"
	"fmt"
)

// VerifyRSAPKCS1v15 verifies sig as an RSA-PKCS1v15 signature over
// message's hash under hashAlg. A CSCA may be RSA-signed even though
// every BSC and VDS signature in this system is ECDSA.
func VerifyRSAPKCS1v15(pub *rsa.PublicKey, hashAlg crypto.Hash, message, sig []byte) error {
	digest, err := Sum(hashAlg, message)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(pub, hashAlg, digest, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}
