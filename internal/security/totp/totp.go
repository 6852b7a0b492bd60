// Package totp envuelve pquerna/otp con los parámetros fijos del servicio:
// SHA1, 6 dígitos, paso de 30s y ventana de ±1 paso.
package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
)

const (
	period     = 30
	skew       = 1
	secretSize = 20
	qrSize     = 200
)

var validateOpts = pqtotp.ValidateOpts{
	Period:    period,
	Skew:      skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrollment es el material que se muestra al usuario en el alta.
type Enrollment struct {
	Secret     string // base32
	OTPAuthURL string
	QRCodePNG  string // data:image/png;base64,...
}

// Generate crea un secreto nuevo con su URI otpauth:// y el QR.
func Generate(issuer, account string) (Enrollment, error) {
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("totp: generate: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return Enrollment{}, fmt.Errorf("totp: qr image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Enrollment{}, fmt.Errorf("totp: qr png: %w", err)
	}

	return Enrollment{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCodePNG:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate verifica code contra secret en t (±1 paso).
// Un secreto o código malformado es simplemente inválido.
func Validate(code, secret string, t time.Time) bool {
	ok, err := pqtotp.ValidateCustom(code, secret, t.UTC(), validateOpts)
	return err == nil && ok
}

// GenerateCode calcula el código vigente en t.
func GenerateCode(secret string, t time.Time) (string, error) {
	return pqtotp.GenerateCodeCustom(secret, t.UTC(), validateOpts)
}
