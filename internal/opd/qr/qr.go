package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"careplus/internal/models"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPayload = errors.New("invalid ticket payload")

// TicketPayload is what the reception scanner reads back from a ticket QR.
type TicketPayload struct {
	BookingID     string `json:"bookingId"`
	SessionID     string `json:"sessionId"`
	BookingNumber int    `json:"bookingNumber"`
	PatientEmail  string `json:"patientEmail"`
}

type Generator struct {
	secret []byte
	size   int
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:], size: 256}
}

// TicketPNG renders the encrypted booking payload as a PNG QR code.
func (g *Generator) TicketPNG(booking models.OpdBooking) ([]byte, error) {
	token, err := g.Encrypt(booking)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, g.size)
}

func (g *Generator) Encrypt(booking models.OpdBooking) (string, error) {
	data, err := json.Marshal(TicketPayload{
		BookingID:     booking.ID,
		SessionID:     booking.SessionID,
		BookingNumber: booking.BookingNumber,
		PatientEmail:  booking.PatientEmail,
	})
	if err != nil {
		return "", err
	}

	gcm, err := g.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or foreign tokens fail with
// ErrInvalidPayload.
func (g *Generator) Decrypt(token string) (*TicketPayload, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	gcm, err := g.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrInvalidPayload
	}

	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	var payload TicketPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &payload, nil
}

func (g *Generator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(g.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
