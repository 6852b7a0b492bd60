package dpop

import (
	"errors"
	"fmt"
)

// ErrMalformedDER indica una firma ECDSA ASN.1/DER inválida.
var ErrMalformedDER = errors.New("dpop: malformed DER signature")

// DERToRaw convierte una firma ECDSA DER (SEQUENCE { INTEGER r, INTEGER s })
// al formato JOSE r||s, con cada componente rellenado a la izquierda hasta size bytes.
// Para P-256 size es 32 y el resultado mide 64 bytes.
func DERToRaw(der []byte, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid component size %d", ErrMalformedDER, size)
	}
	if len(der) < 2 || der[0] != 0x30 {
		return nil, fmt.Errorf("%w: expected SEQUENCE", ErrMalformedDER)
	}
	seqLen, off, err := readLength(der, 1)
	if err != nil {
		return nil, err
	}
	if off+seqLen != len(der) {
		return nil, fmt.Errorf("%w: sequence length mismatch", ErrMalformedDER)
	}

	out := make([]byte, 2*size)
	for i := 0; i < 2; i++ {
		var n []byte
		n, off, err = readInteger(der, off, size)
		if err != nil {
			return nil, err
		}
		// zero-left-pad
		copy(out[i*size+size-len(n):(i+1)*size], n)
	}
	if off != len(der) {
		return nil, fmt.Errorf("%w: trailing bytes", ErrMalformedDER)
	}
	return out, nil
}

// readLength decodifica una longitud DER (forma corta o larga) en der[off:].
// Retorna la longitud y el offset del primer byte de contenido.
func readLength(der []byte, off int) (int, int, error) {
	if off >= len(der) {
		return 0, 0, fmt.Errorf("%w: truncated length", ErrMalformedDER)
	}
	b := der[off]
	off++
	if b < 0x80 {
		return int(b), off, nil
	}

	n := int(b & 0x7f)
	if n == 0 || n > 4 {
		return 0, 0, fmt.Errorf("%w: unsupported length encoding", ErrMalformedDER)
	}
	if off+n > len(der) {
		return 0, 0, fmt.Errorf("%w: truncated long-form length", ErrMalformedDER)
	}
	l := 0
	for _, c := range der[off : off+n] {
		l = l<<8 | int(c)
	}
	off += n
	if l < 0x80 {
		return 0, 0, fmt.Errorf("%w: non-minimal long-form length", ErrMalformedDER)
	}
	return l, off, nil
}

// readInteger lee un INTEGER positivo y retorna su magnitud sin bytes de signo.
func readInteger(der []byte, off, size int) ([]byte, int, error) {
	if off >= len(der) || der[off] != 0x02 {
		return nil, 0, fmt.Errorf("%w: expected INTEGER", ErrMalformedDER)
	}
	l, start, err := readLength(der, off+1)
	if err != nil {
		return nil, 0, err
	}
	if l == 0 || start+l > len(der) {
		return nil, 0, fmt.Errorf("%w: truncated INTEGER", ErrMalformedDER)
	}
	n := der[start : start+l]
	if n[0]&0x80 != 0 {
		return nil, 0, fmt.Errorf("%w: negative INTEGER", ErrMalformedDER)
	}
	for len(n) > 1 && n[0] == 0x00 {
		n = n[1:]
	}
	if len(n) > size {
		return nil, 0, fmt.Errorf("%w: INTEGER wider than %d bytes", ErrMalformedDER, size)
	}
	return n, start + l, nil
}
