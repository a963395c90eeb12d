package qrcode

import (
	"bytes"
	"fmt"
	"io"

	pp "github.com/Frontware/promptpay"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// GeneratePNG renders a PromptPay payment QR for the given amount. Amounts
// are carried as integer cents everywhere else; the conversion to a decimal
// baht value happens only here, at render time.
func GeneratePNG(promptPayID string, amountCents int64) ([]byte, error) {
	payment := pp.PromptPay{PromptPayID: promptPayID, Amount: float64(amountCents) / 100}
	qrcodeStr, err := payment.Gen()
	if err != nil {
		return nil, fmt.Errorf("error generating PromptPay data: %w", err)
	}

	qrc, err := qrcode.New(qrcodeStr)
	if err != nil {
		return nil, fmt.Errorf("error creating QR code: %w", err)
	}

	var buf bytes.Buffer
	writer := standard.NewWithWriter(
		nopCloser{&buf},
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
	)
	if err = qrc.Save(writer); err != nil {
		return nil, fmt.Errorf("error rendering QR code: %w", err)
	}
	return buf.Bytes(), nil
}
