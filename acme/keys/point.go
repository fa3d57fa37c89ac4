package keys

import (
	"crypto/elliptic"
	"encoding/asn1"
	"fmt"
	"math/big"
)

// CurveCoordinate encodes a curve point coordinate (or any scalar bounded by
// the curve order) as a fixed-width big-endian byte string. The width is
// ceil(bits/8) for the curve's bit size: 32 bytes for P-256, 48 for P-384 and
// 66 for P-521. Values shorter than the width are left-padded with zeroes.
func CurveCoordinate(curve elliptic.Curve, coord *big.Int) []byte {
	size := (curve.Params().BitSize + 7) / 8
	out := make([]byte, size)
	return coord.FillBytes(out)
}

// unpackDERSignature decodes an ASN.1 DER SEQUENCE of two INTEGERs (r, s) as
// produced by the ECDSA signing primitive and reassembles it into the raw
// fixed-width form JWS requires: r and s each encoded big-endian in exactly
// coordSize bytes and concatenated. The DER form must never be sent to the
// ACME server.
//
// See https://tools.ietf.org/html/rfc7518#section-3.4
func unpackDERSignature(der []byte, coordSize int) ([]byte, error) {
	var sig struct {
		R *big.Int
		S *big.Int
	}
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, fmt.Errorf("invalid DER signature: %s", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("invalid DER signature: %d trailing bytes", len(rest))
	}
	if sig.R.Sign() < 0 || sig.S.Sign() < 0 {
		return nil, fmt.Errorf("invalid DER signature: negative integer component")
	}
	if sig.R.BitLen() > coordSize*8 || sig.S.BitLen() > coordSize*8 {
		return nil, fmt.Errorf("invalid DER signature: component wider than %d bytes", coordSize)
	}

	out := make([]byte, 2*coordSize)
	sig.R.FillBytes(out[:coordSize])
	sig.S.FillBytes(out[coordSize:])
	return out, nil
}
